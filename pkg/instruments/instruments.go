// Package instruments provides the built-in instrument drivers.
//
// All drivers simulate their hardware so a station loads and runs without
// lab equipment; the fridge driver is the exception and polls a real HTTP
// endpoint. Importing the package registers every driver into the default
// registry. Catalogs describe the default parameter surface (e.g. the MDAC
// catalog assumes the default channel count), which is what configuration
// checks resolve against.
package instruments

import "github.com/qnlab/station-go/pkg/driver"

func init() {
	Register(driver.Default())
}

// Register installs every built-in driver into the registry.
func Register(r *driver.Registry) {
	r.Register("drivers/mdac", newMDAC, mdacCatalog())
	r.Register("drivers/sr860", newSR860, sr860Catalog())
	r.Register("drivers/sg384", newSG384, sg384Catalog())
	r.Register("drivers/lda602", newLDA602, lda602Catalog())
	r.Register("drivers/ni9215", newNI9215, ni9215Catalog())
	r.Register("drivers/mso44", newMSO44, mso44Catalog())
	r.Register("drivers/fridge", newFridge, fridgeCatalog())
}

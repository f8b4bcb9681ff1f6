// Package discovery finds network instruments via mDNS.
//
// Bench instruments that speak LXI or raw SCPI sockets announce
// themselves with DNS-SD; a Browser collects those announcements into
// Found records, and SuggestYAML renders them as a station
// configuration stub. Discovery is one-directional: instruments
// advertise through their own firmware, the station only browses.
package discovery

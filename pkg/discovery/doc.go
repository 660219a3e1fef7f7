// Package discovery finds Laurent controllers on the local network with
// mDNS/DNS-SD.
//
// Controllers (or the bridges in front of them) announce the service type
// _laurent._tcp. The TXT record carries optional keys:
//
//	model=Laurent-2
//	serial=LR2-000451
//	fw=2.12
//
// Browse streams services as they appear, merging addresses seen on several
// interfaces into one entry. Collect gathers everything seen within a time
// window. Advertise announces a controller, which the simulator uses.
package discovery

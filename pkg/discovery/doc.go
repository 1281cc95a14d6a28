// Package discovery advertises and finds parameter servers with
// mDNS/DNS-SD.
//
// Servers register one instance of _paramtree._tcp per exported tree. The
// instance name is the server name; TXT records carry:
//
//	name     server name as announced in the hello response
//	version  protocol version (major.minor)
//	root     path of the exported subtree on the server
//	tls      "1" when the listener requires TLS
//	auth     "psk" when clients must authenticate
//
// Browsers aggregate entries per instance, merging the addresses seen on
// different interfaces into one Service.
package discovery

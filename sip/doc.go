// Package sip provides a comprehensive implementation of the Session Initiation Protocol (SIP)
// as defined in RFC 3261 and related specifications.
//
// The package includes support for parsing and rendering SIP messages (requests and responses),
// managing SIP headers, handling transactions (both client and server), and working with
// SIP URIs. It provides the core building blocks needed to implement SIP user agents,
// proxies, and other SIP-based applications.
package sip

// Package testsupport provides builders and fakes shared by package tests:
// temp-directory configurations, in-memory transfer clients, and scan-file
// fixtures.
package testsupport

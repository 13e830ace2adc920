// Package e2e holds the end-to-end suite for the ProtoCommerce practice
// shop. The tests need a browser and network access and only build with the
// e2e tag:
//
//	POMKIT_USERNAME=... POMKIT_PASSWORD=... go test -tags e2e ./e2e
//
// or through the pomkit command, which sets the tag and the environment.
// With the test session scope every test gets its own browser and the tests
// run in parallel.
package e2e

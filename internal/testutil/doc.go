// Package testutil holds test doubles shared by the store-facing packages:
// a recording subscriber and a middleware spy.
package testutil

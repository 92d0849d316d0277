// Guardsync - GuardDuty organization reconciliation.
// Discover. Import. Verify.
package main

func main() {
	Execute()
}

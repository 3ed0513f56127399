package flows

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each operation to the matching flow implementation.
type Deps struct {
	Login     LoginDeps
	Logout    LogoutDeps
	Reconcile ReconcileDeps
}

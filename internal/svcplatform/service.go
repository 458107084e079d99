package svcplatform

// ServiceRunner is implemented by the supervisor. Run blocks until the
// main loop exits (Stop/Shutdown requested, or a fatal precondition
// failure) and returns the process exit code the OS should see. Any
// number of RequestStop calls before or during Run must be safe and
// idempotent.
type ServiceRunner interface {
	Run() int
	RequestStop()
}

// InstallOptions configures service registration (Windows) or is mostly
// ignored (other platforms, where Dispatch always runs in the
// foreground).
type InstallOptions struct {
	Name           string
	DisplayName    string
	Description    string
	LoadOrderGroup string
	AutoStart      bool
	BinaryPath     string
}

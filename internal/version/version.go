// Package version contains AdGuardCB version information.
package version

// These are set by the linker.  They are only exported through getters, since
// Go has no way to set constants during linking.
var (
	branch     string
	committime string
	revision   string
	version    string

	name = "AdGuardCB"
)

// Branch returns the compiled-in value of the Git branch.
func Branch() (b string) {
	return branch
}

// CommitTime returns the compiled-in value of the commit time as a string.
func CommitTime() (t string) {
	return committime
}

// Revision returns the compiled-in value of the Git revision.
func Revision() (r string) {
	return revision
}

// Version returns the compiled-in value of the AdGuardCB version as a string.
func Version() (v string) {
	return version
}

// Name returns the name of the service.
func Name() (n string) {
	return name
}

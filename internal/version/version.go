package version

import (
	"fmt"
	"runtime"
)

// Version is the application version. Can be overridden at build time via:
//
//	go build -ldflags "-X winsbygroup.com/licverify/internal/version.Version=1.2.3"
var Version = "1.0"

// Commit is the VCS revision, set at build time like Version.
var Commit = "dev"

// Banner prints identifying information about the server.
func Banner() string {
	return fmt.Sprintf("%s\nlicverify (v%s, %s, %s)\n", product(), Version, Commit, runtime.Version())
}

// UserAgent identifies the client SDK in outbound requests.
func UserAgent() string {
	return "licverify/" + Version
}

func product() string {
	// http://patorjk.com/software/taag/#p=display&f=Small&t=licverify
	const s = `
  _ _                 _  __
 | (_)__ __ _____ _ _(_)/ _|_  _
 | | / _|\ V / -_) '_| |  _| || |
 |_|_\__| \_/\___|_| |_|_|  \_, |
                            |__/
`
	return s
}

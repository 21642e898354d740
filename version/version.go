package version

// Version is set at build time via -ldflags "-X github.com/liamg/portaudit/version.Version=..."
var Version string

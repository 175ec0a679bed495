package version

// Version and BuildTime are substituted during build with -ldflags
var (
	Version   = "devel"
	BuildTime = "unknown"
)

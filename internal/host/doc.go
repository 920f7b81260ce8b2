// Package host locates the native messaging host executable and builds its
// argument vector and environment.
//
// # Discovery
//
// The Discoverer interface locates the host binary:
//
//	discoverer := host.NewDiscoverer(&host.Config{
//	    ExecutablePath: "",   // Optional explicit path
//	    Logger:         slog.Default(),
//	})
//	path, err := discoverer.Discover(ctx)
//
// Discovery searches in the following order:
//  1. Explicit path in Config.ExecutablePath (if provided, nothing else is tried)
//  2. Each of Config.SearchNames in the system PATH
//  3. Each of Config.CommonPaths
//
// When both SearchNames and CommonPaths are empty, DefaultSearchNames and
// DefaultCommonPaths are used.
//
// # Command Building
//
//	args := host.BuildArgs(options, showUI)
//	env := host.BuildEnvironment(options)
package host

package embeddings

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// The local embedding backend loads models through the ONNX runtime shared
// library, an optional native dependency. This file resolves that dependency
// once per process: locate a native install, register a bundled copy under
// the name the backend expects, or degrade to a stub so local construction
// fails closed instead of crashing. The shim never downloads or installs
// anything; provisioning the runtime is a deployment-time concern.

// RuntimeKind describes how the native runtime dependency was satisfied.
type RuntimeKind int

const (
	// RuntimeStub means no runtime library could be located. Local model
	// construction fails closed and the initializer falls back.
	RuntimeStub RuntimeKind = iota
	// RuntimeNative means a system or user-installed library was found.
	RuntimeNative
	// RuntimeBundled means the fallback copy shipped alongside the
	// executable was registered via the ONNX_PATH environment variable.
	RuntimeBundled
)

// String returns a label for logs and diagnostics.
func (k RuntimeKind) String() string {
	switch k {
	case RuntimeNative:
		return "native"
	case RuntimeBundled:
		return "bundled"
	default:
		return "stub"
	}
}

// RuntimeInfo describes the resolved runtime dependency.
type RuntimeInfo struct {
	Kind        RuntimeKind
	LibraryPath string
}

// shim holds the process-wide resolution result.
var shim struct {
	mu       sync.Mutex
	resolved bool
	info     RuntimeInfo
}

// Seams for tests; production code never overrides these.
var (
	setRuntimePathEnv = func(path string) error {
		return os.Setenv("ONNX_PATH", path)
	}
	lookupRuntimePathEnv = func() string {
		return os.Getenv("ONNX_PATH")
	}
	executablePath    = os.Executable
	runtimeSearchDirs = defaultRuntimeSearchDirs
)

// libraryNames maps GOOS to the shared library filename.
var libraryNames = map[string]string{
	"linux":  "libonnxruntime.so",
	"darwin": "libonnxruntime.dylib",
}

func runtimeLibraryName() string {
	if name, ok := libraryNames[runtime.GOOS]; ok {
		return name
	}
	return "libonnxruntime.so"
}

// managedInstallDir is where deployment tooling installs the runtime.
func managedInstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "embedfn", "lib")
}

func defaultRuntimeSearchDirs() []string {
	return []string{
		managedInstallDir(),
		"/usr/local/lib",
		"/usr/lib",
	}
}

// GetRuntimeLibraryPath returns the path to the ONNX runtime library.
// Checks in order:
//  1. ONNX_PATH environment variable (user override)
//  2. Managed install at ~/.config/embedfn/lib/
//  3. Common system library directories
//
// Returns empty string if not found. Side-effect free.
func GetRuntimeLibraryPath() string {
	if envPath := lookupRuntimePathEnv(); envPath != "" {
		return envPath
	}

	libName := runtimeLibraryName()
	for _, dir := range runtimeSearchDirs() {
		path := filepath.Join(dir, libName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// RuntimeAvailable reports whether the native runtime can be located.
func RuntimeAvailable() bool {
	return GetRuntimeLibraryPath() != ""
}

// bundledRuntimePath looks for a fallback copy of the library shipped next
// to the executable under lib/.
func bundledRuntimePath() string {
	exe, err := executablePath()
	if err != nil {
		return ""
	}
	path := filepath.Join(filepath.Dir(exe), "lib", runtimeLibraryName())
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// EnsureRuntimeShim resolves the native runtime dependency once per process
// and caches the result; repeated invocations are no-ops returning the
// cached RuntimeInfo. It never fails: when neither a native install nor a
// bundled copy can be found it returns RuntimeStub, which makes local model
// construction fail closed so the initializer can fall back. A bundled copy
// is registered under ONNX_PATH, the name the backend's loader expects.
func EnsureRuntimeShim(logger *zap.Logger) RuntimeInfo {
	if logger == nil {
		logger = zap.NewNop()
	}

	shim.mu.Lock()
	defer shim.mu.Unlock()

	if shim.resolved {
		return shim.info
	}

	if path := GetRuntimeLibraryPath(); path != "" {
		shim.info = RuntimeInfo{Kind: RuntimeNative, LibraryPath: path}
		shim.resolved = true
		logger.Debug("onnx runtime located", zap.String("path", path))
		return shim.info
	}

	if path := bundledRuntimePath(); path != "" {
		if err := setRuntimePathEnv(path); err != nil {
			logger.Warn("failed to register bundled onnx runtime",
				zap.String("path", path),
				zap.Error(err))
		} else {
			shim.info = RuntimeInfo{Kind: RuntimeBundled, LibraryPath: path}
			shim.resolved = true
			logger.Info("registered bundled onnx runtime", zap.String("path", path))
			return shim.info
		}
	}

	shim.info = RuntimeInfo{Kind: RuntimeStub}
	shim.resolved = true
	logger.Warn("onnx runtime not found, local embedding models are disabled",
		zap.String("hint", "install onnxruntime or set ONNX_PATH"))
	return shim.info
}

// resetRuntimeShim clears the cached resolution. Tests only.
func resetRuntimeShim() {
	shim.mu.Lock()
	defer shim.mu.Unlock()
	shim.resolved = false
	shim.info = RuntimeInfo{}
}

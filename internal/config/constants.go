package config

// Lua schema field names and globals
const (
	luaGlobalWorkspace = "workspace"
	luaFieldDir        = "dir"
	luaFieldJobs       = "jobs"
	luaFieldNode       = "node"
	luaFieldNpm        = "npm"
	luaFieldCLI        = "cli"
	luaFieldTasks      = "tasks"
	luaFieldVersion    = "version"
	luaFieldMirror     = "mirror"
	luaFieldOS         = "os"
	luaFieldArch       = "arch"
	luaFieldVerify     = "verify"
	luaFieldKeyring    = "keyring"
	luaFieldRegistry   = "registry"
	luaFieldOutput     = "output"
	luaFieldPackage    = "package"
	luaFieldName       = "name"
	luaFieldDesc       = "description"
	luaFieldDeps       = "deps"
	luaFieldRun        = "run"
)

// Defaults
const (
	DefaultFile         = "wsbuild.lua"
	DefaultDir          = "./tmp/workspace"
	DefaultNodeVersion  = "22.11.0"
	DefaultNodeMirror   = "https://nodejs.org/download/release"
	DefaultNpmVersion   = "10.9.0"
	DefaultNpmRegistry  = "https://registry.npmjs.org"
	DefaultCLIOutput    = "heroku"
	DefaultCLIPackage   = "."
	reservedTaskPrefix  = "build"
	maxTaskCount        = 256
	maxTaskNameLength   = 128
	maxCommandArguments = 256
)

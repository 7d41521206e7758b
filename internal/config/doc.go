// Package config loads the workspace build configuration.
//
// # Sources
//
// The effective Config is assembled in three layers, later layers winning:
//
//  1. Defaults(): node 22.11.0, npm 10.9.0, ./tmp/workspace, output "heroku"
//  2. an optional Lua file (wsbuild.lua) declaring a global `workspace` table
//  3. WSBUILD_* environment variables (see Env)
//
// # Lua schema
//
//	workspace = {
//	  dir  = "./tmp/workspace",
//	  jobs = 4,
//	  node = { version = "22.11.0", mirror = "https://nodejs.org/download/release",
//	           os = "darwin", arch = "arm64", verify = true, keyring = "keys/node.asc" },
//	  npm  = { version = "10.9.0", registry = "https://registry.npmjs.org" },
//	  cli  = { output = "heroku", package = "." },
//	  tasks = {
//	    { name = "lint", deps = { "build" }, run = { "go", "vet", "./..." } },
//	  },
//	}
//
// Keys that are absent keep their default. A present key of the wrong type is
// a *ParseError. Empty node.os and node.arch select the detected host.
//
// # Sandboxing
//
// The file runs in a gopher-lua VM without os, io, debug, module loading or
// raw table access, so a config can compute values but cannot touch the
// machine. Host details are available through a read-only `platform` table:
//
//	workspace = {
//	  cli = { output = platform.when(platform.is_macos, "heroku-darwin") or "heroku" },
//	}
package config

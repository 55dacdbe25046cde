// Package model defines the domain types shared by all pipeline stages:
// target architectures, build artifacts, the stage/state vocabulary of the
// pipeline driver, and the error taxonomy that maps stage failures to
// process exit codes.
package model

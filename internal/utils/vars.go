package utils

import (
	"errors"
	"regexp"
)

const ToolName = "fget"
const DefaultBufferSize = 1024 * 256 // 256KB read buffer per connection
const DefaultMaxSocketsPerHost = 5
const LogFile = ".fget.log"

// Temp artifacts are dot-prefixed and carry one of these markers so `fget clean` can find them.
// Stubs are left by older releases that probed into a scratch file.
const TempSuffix = ".fget.tmp"
const StubSuffix = ".stub.fget.tmp"

var ErrInvalidCredentials = errors.New("credentials must be in user:password form")
var ErrInvalidByteSize = errors.New("invalid byte size")

var byteSizeRegex = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?)(?:IB|B)?\s*$`)

// Package hex shortens the standard library hex encoder names.
package hex

import "encoding/hex"

type InvalidByteError = hex.InvalidByteError

var (
	Enc    = hex.EncodeToString
	Dec    = hex.DecodeString
	DecLen = hex.DecodedLen
	Decode = hex.Decode
)

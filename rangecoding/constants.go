package rangecoding

// Range-coder constants per RFC 6716 Section 4.1.
const (
	EC_SYM_BITS   = 8
	EC_CODE_BITS  = 32
	EC_SYM_MAX    = 255
	EC_CODE_TOP   = 1 << 31
	EC_CODE_BOT   = EC_CODE_TOP >> 8
	EC_CODE_SHIFT = 23
	EC_CODE_EXTRA = 7
	EC_UINT_BITS  = 8
)

package metadata

// Field types mirror the column types used by the bootstrap schema.
const (
	TypeString    = "string"
	TypeInt       = "int"
	TypeDecimal   = "decimal"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
)

type Field struct {
	Name     string
	Type     string
	Required bool
	Unique   bool

	// WriteOnly fields (password hashes) are accepted on writes but
	// excluded from every SELECT column list.
	WriteOnly bool
}

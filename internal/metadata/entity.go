package metadata

// Entity describes one resource: its table, primary key and fields.
// Descriptors are static data declared in schema.go and never change
// after startup.
type Entity struct {
	Name       string
	Table      string
	PrimaryKey PrimaryKey
	Fields     []Field
	Rules      []*Rule
}

// PrimaryKey is always a generated integer column in this schema.
type PrimaryKey struct {
	Column string
}

// GetField returns a pointer to the field with the given name, or nil.
func (e *Entity) GetField(name string) *Field {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the entity has a field with the given name.
func (e *Entity) HasField(name string) bool {
	return e.GetField(name) != nil
}

// ColumnNames returns the primary key followed by all field names, the
// column list used by reads. Write-only fields are excluded.
func (e *Entity) ColumnNames() []string {
	cols := []string{e.PrimaryKey.Column}
	for _, f := range e.Fields {
		if f.WriteOnly {
			continue
		}
		cols = append(cols, f.Name)
	}
	return cols
}

// RequiredFields returns the names of fields that must be present on create.
func (e *Entity) RequiredFields() []string {
	var names []string
	for _, f := range e.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

package metadata

// Schema declares the seven ministry resources. The descriptors mirror
// the tables created by the store bootstrap; they are the single source
// of truth for the CRUD engine's validation and SQL generation.
func Schema() []*Entity {
	return []*Entity{
		{
			Name:       "Church",
			Table:      "churches",
			PrimaryKey: PrimaryKey{Column: "church_id"},
			Fields: []Field{
				{Name: "name", Type: TypeString, Required: true, Unique: true},
				{Name: "address", Type: TypeString},
				{Name: "city", Type: TypeString},
				{Name: "state", Type: TypeString},
				{Name: "phone", Type: TypeString},
				{Name: "email", Type: TypeString},
				{Name: "pastor_name", Type: TypeString},
				{Name: "founded_date", Type: TypeDate},
			},
		},
		{
			Name:       "Person",
			Table:      "people",
			PrimaryKey: PrimaryKey{Column: "person_id"},
			Fields: []Field{
				{Name: "church_id", Type: TypeInt},
				{Name: "first_name", Type: TypeString, Required: true},
				{Name: "last_name", Type: TypeString, Required: true},
				{Name: "email", Type: TypeString},
				{Name: "phone", Type: TypeString},
				{Name: "address", Type: TypeString},
				{Name: "birth_date", Type: TypeDate},
				{Name: "membership_date", Type: TypeDate},
				{Name: "role", Type: TypeString},
			},
		},
		{
			Name:       "Stats",
			Table:      "stats",
			PrimaryKey: PrimaryKey{Column: "stats_id"},
			Fields: []Field{
				{Name: "church_id", Type: TypeInt, Required: true},
				{Name: "stats_date", Type: TypeDate, Required: true},
				{Name: "attendance", Type: TypeInt},
				{Name: "first_timers", Type: TypeInt},
				{Name: "new_converts", Type: TypeInt},
				{Name: "tithes", Type: TypeDecimal},
				{Name: "offerings", Type: TypeDecimal},
			},
			Rules: []*Rule{
				{Type: "field", Field: "attendance", Operator: "min", Value: 0,
					Message: "attendance cannot be negative"},
				{Type: "field", Field: "first_timers", Operator: "min", Value: 0,
					Message: "first_timers cannot be negative"},
				{Type: "field", Field: "new_converts", Operator: "min", Value: 0,
					Message: "new_converts cannot be negative"},
			},
		},
		{
			Name:       "User",
			Table:      "users",
			PrimaryKey: PrimaryKey{Column: "user_id"},
			Fields: []Field{
				{Name: "username", Type: TypeString, Required: true, Unique: true},
				{Name: "password", Type: TypeString, Required: true, WriteOnly: true},
				{Name: "email", Type: TypeString},
				{Name: "role", Type: TypeString},
			},
		},
		{
			Name:       "Calendar",
			Table:      "calendar_events",
			PrimaryKey: PrimaryKey{Column: "id"},
			Fields: []Field{
				{Name: "title", Type: TypeString, Required: true},
				{Name: "description", Type: TypeString},
				{Name: "start_time", Type: TypeTimestamp, Required: true},
				{Name: "end_time", Type: TypeTimestamp},
				{Name: "venue", Type: TypeString},
				{Name: "church_id", Type: TypeInt},
			},
			Rules: []*Rule{
				{Type: "expression",
					Expression: `record.end_time != nil && record.start_time != nil && record.end_time < record.start_time`,
					Message:    "end_time must not precede start_time"},
			},
		},
		{
			Name:       "Asset",
			Table:      "assets",
			PrimaryKey: PrimaryKey{Column: "asset_id"},
			Fields: []Field{
				{Name: "location_id", Type: TypeInt, Required: true},
				{Name: "name", Type: TypeString, Required: true},
				{Name: "description", Type: TypeString},
				{Name: "category", Type: TypeString},
				{Name: "serial_number", Type: TypeString},
				{Name: "purchase_date", Type: TypeDate},
				{Name: "purchase_price", Type: TypeDecimal},
				{Name: "condition", Type: TypeString},
			},
		},
		{
			Name:       "Location",
			Table:      "locations",
			PrimaryKey: PrimaryKey{Column: "location_id"},
			Fields: []Field{
				{Name: "name", Type: TypeString, Required: true},
				{Name: "address", Type: TypeString},
				{Name: "contact_person", Type: TypeString},
				{Name: "contact_phone", Type: TypeString},
			},
		},
	}
}

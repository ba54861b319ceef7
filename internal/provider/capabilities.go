package provider

// KindCapabilities returns the static capability descriptor for a
// provider kind, or nil for unknown kinds. The remote descriptor is
// advisory until that engine becomes constructible.
func KindCapabilities(k Kind) *Capabilities {
	switch k {
	case KindSQLite:
		return &Capabilities{
			Realtime:       true,
			BulkOperations: true,
			Transactions:   true,
			Indexes:        true,
			Backup:         true,
			MaxConnections: 1,
			MaxRecordSize:  10 << 20,
		}
	case KindRemote:
		return &Capabilities{
			Realtime:       true,
			BulkOperations: true,
			Transactions:   true,
			FullTextSearch: true,
			Relations:      true,
			Indexes:        true,
			Backup:         true,
			Encryption:     true,
			MaxConnections: 100,
			MaxRecordSize:  50 << 20,
		}
	}
	return nil
}

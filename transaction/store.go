package transaction

// ListOpts filters ledger history queries. Results are newest first.
type ListOpts struct {
	LicensePlate string
	State        State
	Limit        int
	Offset       int
}

// Page applies Offset and Limit to an already ordered slice.
func Page[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

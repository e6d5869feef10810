package domain

// VestingRecord is the stored state of one linear vesting schedule. It is the
// partially-releasing specialization of a custody record: value unlocks
// linearly between StartTime and EndTime, gated by CliffTime, and Released
// only ever grows toward Total.
//
// Invariants: StartTime <= CliffTime <= EndTime, Released <= Total. The
// record turns terminal on its own once Released == Total, or when the admin
// cancels it (refunding Total - Released and freezing further release).
type VestingRecord struct {
	Address     Address
	Admin       Address // deposits the total and may cancel
	Beneficiary Address // withdraws unlocked value
	Total       uint64
	Released    uint64
	StartTime   int64 // unix seconds
	CliffTime   int64
	EndTime     int64
	State       State
	Seed        uint64
	Bump        uint8
	CreatedAt   int64
	UpdatedAt   int64
	Reserved    [ReservedLen]byte
}

// Remaining is the value still held in custody for the schedule.
func (v VestingRecord) Remaining() uint64 {
	if v.Released > v.Total {
		return 0
	}
	return v.Total - v.Released
}

package booking

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// transitions は許可された状態遷移の一覧
// ここにない遷移はすべて不正とする
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
	StatusCancelled: {},
}

// IsValid は定義済みの状態かを返す
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal は終了状態かを返す
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

// CanTransitionTo は next への遷移が許可されているかを返す
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HoldsInventory はこの状態の予約が在庫を消費しているかを返す
func (s Status) HoldsInventory() bool {
	return s == StatusPending || s == StatusConfirmed
}

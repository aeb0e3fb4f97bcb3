package user

import "errors"

// Role は利用者のロール
type Role string

const (
	RoleStandard  Role = "Standard User"
	RoleOrganizer Role = "Organizer"
	RoleAdmin     Role = "System Admin"
)

// IsValid は定義済みのロールかを返す
func (r Role) IsValid() bool {
	switch r {
	case RoleStandard, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

var (
	ErrUnauthenticated = errors.New("認証が必要です")
	ErrForbidden       = errors.New("この操作を行う権限がありません")
)

// Actor は認証済みの呼び出し元を表す
// 資格情報の検証は API 層で済んでいる前提
type Actor struct {
	UserID string
	Role   Role
}

// System は内部処理（期限切れ予約の整理など）用のアクター
var System = Actor{UserID: "system", Role: RoleAdmin}

// IsAdmin は管理者かを返す
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsOrganizer は主催者かを返す
func (a Actor) IsOrganizer() bool {
	return a.Role == RoleOrganizer
}

// CanActFor は userID 本人または管理者かを返す
func (a Actor) CanActFor(userID string) bool {
	if a.IsAdmin() {
		return true
	}
	return a.UserID != "" && a.UserID == userID
}

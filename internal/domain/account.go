package domain

// AccountSession is the caller-supplied identity for every backend call. The
// core never stores credentials; the session travels with each request.
type AccountSession struct {
	UserID   string `json:"userid"`
	Token    string `json:"token"`
	OpenID   string `json:"openid"`
	CinemaID string `json:"cinema_id"`
}

// Ref identifies the account for order bookkeeping. OpenID is preferred as it
// is stable across token refreshes.
func (a AccountSession) Ref() string {
	if a.OpenID != "" {
		return a.OpenID
	}
	return a.UserID
}

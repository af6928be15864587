package app

import "cashflow/internal/core"

// UserSession is returned by AuthenticateUser.
type UserSession struct {
	User        *core.User
	Principal   core.Principal
	CompanyCode string
}

// UserResult is returned by GetUser.
type UserResult struct {
	User        *core.User
	Principal   core.Principal
	CompanyCode string
}

package dawanda

import (
	"net/url"
)

const (
	// DefaultBaseURL is the origin every relative marketplace URL is resolved against
	DefaultBaseURL = "https://de.dawanda.com"

	// LoginPath accepts the login form and answers 201 on success
	LoginPath = "/core/sessions"

	// ProfilePath returns the current user's profile as JSON
	ProfilePath = "/current_user/profile"

	// SessionCookieName is the cookie that carries an authenticated session
	SessionCookieName = "_dawanda_session"

	productListPath = "/seller/products"
	feedbackPath    = "/user/feedback/"
)

// Product states in seed order. The crawler pops LIFO, so active listings
// are visited first.
var productStates = []string{"draft", "paused", "past", "active"}

// ProductListPaths returns the first listing page for every product state
func ProductListPaths() []string {
	paths := make([]string, 0, len(productStates))
	for _, state := range productStates {
		paths = append(paths, productListPath+"?product_search[state]="+url.QueryEscape(state))
	}
	return paths
}

// FeedbackPath returns the first ratings page for a seller
func FeedbackPath(username string) string {
	return feedbackPath + url.PathEscape(username)
}

// ProductEditPath returns the edit page that embeds a product's full data
func ProductEditPath(id string) string {
	return productListPath + "/" + url.PathEscape(id) + "/edit"
}

// LoginForm builds the form body posted to LoginPath
func LoginForm(username, password string) url.Values {
	form := url.Values{}
	form.Set("user[email_or_username]", username)
	form.Set("user[password]", password)
	form.Set("user[remember_me]", "true")
	return form
}

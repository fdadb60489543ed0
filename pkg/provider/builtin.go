package provider

import (
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const (
	Twitter   = "twitter"
	GitHub    = "github"
	Google    = "google"
	Facebook  = "facebook"
	Bitbucket = "bitbucket"
	GitLab    = "gitlab"
)

// Builtin returns fresh copies of the built-in provider descriptors.
func Builtin() []Descriptor {
	return []Descriptor{
		{
			Name:            Twitter,
			Protocol:        OAuth1,
			RequestTokenURL: "https://api.twitter.com/oauth/request_token",
			AuthURL:         "https://api.twitter.com/oauth/authenticate",
			TokenURL:        "https://api.twitter.com/oauth/access_token",
			ProfileURL:      "https://api.twitter.com/1.1/users/show.json",
			Mapping: Mapping{
				ID:          "token.user_id",
				Username:    "token.screen_name",
				DisplayName: "profile.name",
			},
			Quirks: Quirks{
				ProfileTokenParams: map[string]string{"user_id": "user_id"},
			},
		},
		{
			Name:       GitHub,
			Protocol:   OAuth2,
			AuthURL:    github.Endpoint.AuthURL,
			TokenURL:   github.Endpoint.TokenURL,
			ProfileURL: "https://api.github.com/user",
			Scopes:     []string{"user:email"},
			Mapping: Mapping{
				ID:          "profile.id",
				Username:    "profile.login",
				DisplayName: "profile.name",
				Email:       "profile.email",
			},
		},
		{
			// No profile endpoint: identity comes from the OpenID id_token.
			Name:     Google,
			Protocol: OAuth2,
			AuthURL:  google.Endpoint.AuthURL,
			TokenURL: google.Endpoint.TokenURL,
			Scopes:   []string{"openid", "email", "profile"},
			Mapping: Mapping{
				ID:          "id_token.sub",
				Username:    "id_token.email",
				DisplayName: "id_token.name",
				Email:       "id_token.email",
			},
			Quirks: Quirks{
				PKCE: true,
			},
		},
		{
			Name:       Facebook,
			Protocol:   OAuth2Facebook,
			AuthURL:    endpoints.Facebook.AuthURL,
			TokenURL:   endpoints.Facebook.TokenURL,
			ProfileURL: "https://graph.facebook.com/v19.0/me",
			Scopes:     []string{"email"},
			Mapping: Mapping{
				ID:          "profile.id",
				DisplayName: "profile.name",
				Email:       "profile.email",
			},
			Quirks: Quirks{
				ScopeSeparator: ",",
				ProfileParams:  map[string]string{"fields": "id,name,email"},
			},
		},
		{
			Name:       Bitbucket,
			Protocol:   OAuth2,
			AuthURL:    endpoints.Bitbucket.AuthURL,
			TokenURL:   endpoints.Bitbucket.TokenURL,
			ProfileURL: "https://api.bitbucket.org/2.0/user",
			Scopes:     []string{"account", "email"},
			Mapping: Mapping{
				ID:          "profile.uuid",
				Username:    "profile.username",
				DisplayName: "profile.display_name",
			},
		},
		{
			Name:       GitLab,
			Protocol:   OAuth2,
			AuthURL:    endpoints.GitLab.AuthURL,
			TokenURL:   endpoints.GitLab.TokenURL,
			ProfileURL: "https://gitlab.com/api/v4/user",
			Scopes:     []string{"read_user"},
			Mapping: Mapping{
				ID:          "profile.id",
				Username:    "profile.username",
				DisplayName: "profile.name",
				Email:       "profile.email",
			},
			Quirks: Quirks{
				PKCE: true,
			},
		},
	}
}

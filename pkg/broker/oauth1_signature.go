package broker

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"
)

const oauth1SignatureMethod = "HMAC-SHA1"

// oauth1Request describes the protocol parameters of one signed request.
type oauth1Request struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
	// Extra carries oauth_callback or oauth_verifier.
	Extra map[string]string
	// InQuery moves the protocol parameters from the Authorization header
	// to the query string.
	InQuery bool
}

// percentEncode applies RFC 3986 encoding: only unreserved characters
// pass through.
func percentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte("0123456789ABCDEF"[c>>4])
		b.WriteByte("0123456789ABCDEF"[c&15])
	}
	return b.String()
}

// baseURL normalizes u for the signature base string: lowercase scheme and
// host, default ports dropped, no query or fragment.
func baseURL(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
		host += ":" + port
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path
}

// signatureBase builds METHOD&url&params with params encoded and sorted
// by name, then value.
func signatureBase(method string, u *url.URL, params url.Values) string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(params))
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}
	slices.SortFunc(pairs, func(a, b pair) int {
		if c := strings.Compare(a.k, b.k); c != 0 {
			return c
		}
		return strings.Compare(a.v, b.v)
	})

	encoded := make([]string, len(pairs))
	for i, p := range pairs {
		encoded[i] = p.k + "=" + p.v
	}
	return strings.ToUpper(method) + "&" +
		percentEncode(baseURL(u)) + "&" +
		percentEncode(strings.Join(encoded, "&"))
}

// hmacSHA1 signs base with consumerSecret&tokenSecret.
func hmacSHA1(base, consumerSecret, tokenSecret string) string {
	key := percentEncode(consumerSecret) + "&" + percentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// sign adds OAuth1.0a HMAC-SHA1 authorization to req. Query values and
// the values of a form-encoded body take part in the signature.
func (t transport) sign(req *http.Request, r oauth1Request) {
	oauth := map[string]string{
		"oauth_consumer_key":     r.ConsumerKey,
		"oauth_nonce":            t.nonce(),
		"oauth_signature_method": oauth1SignatureMethod,
		"oauth_timestamp":        strconv.FormatInt(t.now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if r.Token != "" {
		oauth["oauth_token"] = r.Token
	}
	for k, v := range r.Extra {
		oauth[k] = v
	}

	params := url.Values{}
	for k, vs := range req.URL.Query() {
		params[k] = append(params[k], vs...)
	}
	for k, vs := range formParams(req) {
		params[k] = append(params[k], vs...)
	}
	for k, v := range oauth {
		params.Set(k, v)
	}

	oauth["oauth_signature"] = hmacSHA1(signatureBase(req.Method, req.URL, params), r.ConsumerSecret, r.TokenSecret)

	if r.InQuery {
		q := req.URL.Query()
		for k, v := range oauth {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
		return
	}

	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, percentEncode(k)+`="`+percentEncode(oauth[k])+`"`)
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(parts, ", "))
}

// formParams returns the values of a form-encoded body without consuming
// it. Bodies that cannot be replayed are not signed.
func formParams(req *http.Request) url.Values {
	if req.GetBody == nil || !strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil
	}
	defer func() { _ = body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(body, maxBodySize))
	if err != nil {
		return nil
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil
	}
	return form
}

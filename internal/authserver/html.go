package authserver

import "html/template"

// consentTemplate renders the browser consent form. All request-derived
// values pass through html/template's contextual escaping.
var consentTemplate = template.Must(template.New("consent").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Authorize Access</title>
<style>
  body { font-family: system-ui, sans-serif; max-width: 480px; margin: 4rem auto; padding: 0 1rem; color: #222; }
  h1 { font-size: 1.3rem; }
  .client { font-family: monospace; background: #f4f4f4; padding: 0.2rem 0.4rem; border-radius: 3px; word-break: break-all; }
  .error { color: #b00020; margin: 1rem 0; }
  label { display: block; margin: 1rem 0 0.3rem; }
  input[type=password] { width: 100%; padding: 0.5rem; box-sizing: border-box; }
  button { margin-top: 1.2rem; padding: 0.5rem 1.5rem; }
</style>
</head>
<body>
<h1>Authorize Access</h1>
<p>Client <span class="client">{{.ClientID}}</span> is requesting access to the law lookup tools.</p>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/oauth/authorize">
  <input type="hidden" name="client_id" value="{{.ClientID}}">
  <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}">
  <input type="hidden" name="state" value="{{.State}}">
  <input type="hidden" name="code_challenge" value="{{.CodeChallenge}}">
  <input type="hidden" name="code_challenge_method" value="{{.CodeChallengeMethod}}">
  <label for="api_key">API key</label>
  <input type="password" id="api_key" name="api_key" autocomplete="off" required>
  <button type="submit">Approve</button>
</form>
</body>
</html>
`))

type consentData struct {
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Error               string
}

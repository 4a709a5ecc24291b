package httptransport

import "html/template"

// 落地页与错误页模板。html/template 的上下文感知转义负责防注入：
// mailto 在 href 与 script 字符串两个位置各自按上下文转义。

const pageStyle = `
    body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Helvetica,Arial,sans-serif;margin:0;display:flex;min-height:100vh;align-items:center;justify-content:center;background:#0b0c10;color:#eaeaea}
    .card{max-width:560px;width:92%;background:#111318;border:1px solid #22262f;border-radius:16px;padding:22px;box-shadow:0 10px 25px rgba(0,0,0,.35)}
    h1{font-size:18px;margin:0 0 10px}
    p{margin:0 0 14px;opacity:.9;line-height:1.4}
    a.btn{display:inline-block;text-decoration:none;padding:12px 14px;border-radius:12px;background:#2b6ef7;color:white;font-weight:600}
    .muted{font-size:12px;opacity:.75;margin-top:14px}
    code{background:#0b0c10;padding:2px 6px;border-radius:8px}`

const landingHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <title>Open Email</title>
  <style>` + pageStyle + `</style>
</head>
<body>
  <div class="card">
    <h1>Opening your email app…</h1>
    <p>If nothing happens, click the button below.</p>
    <p><a class="btn" href="{{.Mailto}}">Open email</a></p>
    <p class="muted">Link: <code>{{.ShortURL}}</code></p>
  </div>

  <script>
    try { window.location.href = {{.Mailto}}; } catch(e){}
  </script>
</body>
</html>`

const errorHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <title>{{.Title}}</title>
  <style>` + pageStyle + `</style>
</head>
<body>
  <div class="card">
    <h1>{{.Title}}</h1>
    <p>{{.Message}}</p>
    {{if .ShortURL}}<p class="muted">Link: <code>{{.ShortURL}}</code></p>{{end}}
  </div>
</body>
</html>`

var (
	landingTemplate = template.Must(template.New("landing").Parse(landingHTML))
	errorTemplate   = template.Must(template.New("error").Parse(errorHTML))
)

// landingData 落地页渲染数据
type landingData struct {
	Mailto   string
	ShortURL string
}

// errorData 错误页渲染数据
type errorData struct {
	Title    string
	Message  string
	ShortURL string
}

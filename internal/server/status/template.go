package status

import (
	"html/template"
)

type statusTemplateData struct {
	Version   string
	Mode      string
	Active    *SessionInfo
	Recent    []SessionInfo
	Handshake *HandshakeInfo
	Log       string

	IsError bool
	Error   string

	CSRFField template.HTML
}

const templateString = `
<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no">
  <title>Gabinator status</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", "Roboto", "Helvetica Neue", Arial, sans-serif;
    }

    h1 {
      font-size: 36px;
    }

    p {
      color: #858585;
    }

    .error {
      border: 1px solid orangered;
      border-radius: 4px;
      max-width: 500px;
      margin: 20px auto;
      padding: 13px;
      color: darkred;
    }

    .item {
      border: 1px solid lightgray;
      border-radius: 4px;
      max-width: 500px;
      margin: 20px auto;
      padding: 10px 20px;
      text-align: left;
    }

    .inner-container {
      max-width: 1024px;
      margin: 0 auto;
      text-align: center;
    }

    .badge {
      display: inline-block;
      padding: 6px 10px 6px 10px;
      border: 1px solid #01B757;
      border-radius: 4px;
      color: #01B757;
    }

    .space-top {
      margin-top: 34px;
    }

    .btn-primary {
      display: inline-block;
      padding: 10px 40px 10px 40px;
      background-color: #01B757;
      color: white;
      border-radius: 4px;
    }

    textarea {
      max-width: 700px;
    }
  </style>
</head>

<body>
  <div class="inner-container">
    <h1>Gabinator status</h1>
    <span class="badge">Version: {{.Version}}</span>
    <span class="badge">Mode: {{.Mode}}</span>

    {{if .IsError}}
      <div class="error">
        <b>Last handshake failed:</b> {{.Error}}
      </div>
    {{end}}

    {{with .Active}}
    <div class="item">
      <h3>Streaming: session {{.ID}}</h3>
      <p>{{.Mode}} {{.Peer}}, since {{.Started.Format "15:04:05"}}</p>
      {{if .Failures}}<p>Consecutive send failures: {{.Failures}}</p>{{end}}
    </div>
    {{else}}
    <p>No active session</p>
    {{end}}

    {{with .Handshake}}
    <p>Last handshake: {{.Device}} {{.State}}{{if .Version}} (AOA {{.Version}}){{end}}</p>
    {{end}}

    {{range .Recent}}
    <div class="item">
      <b>Session {{.ID}}</b> {{.Mode}} {{.Peer}}: {{.Outcome}}{{if .Reason}} ({{.Reason}}){{end}},
      {{.Frames}} frames in {{.Duration}}
    </div>
    {{end}}

    <div class="space-top">
      <p>Console Log</p>
      <textarea rows="25" cols="150" id="log">
{{.Log}}
      </textarea>
      <form method="post" action="/status/log.gz">
        {{.CSRFField}}
        <button type="submit" class="btn-primary">Download detailed log</button>
      </form>
    </div>

    <div class="space-top">
      <a href="#" onClick="location.href=location.href">
        <div class="btn-primary">Refresh page</div>
      </a>
    </div>
  </div>
</body>
</html>
`

var statusTemplate = template.Must(template.New("status").Parse(templateString))

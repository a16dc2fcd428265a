package bridge

import (
	"bytes"
	"text/template"
)

// Marker is the attribute carried by the injected script tag.
const Marker = "data-coursebridge-shim"

// The shim keeps the synchronous GetValue/SetValue contract legacy content
// expects: Initialize loads the full snapshot with one blocking request, reads
// and writes hit the in-memory copy, and Commit/Finish flush dirty keys.
var shimTemplate = template.Must(template.New("shim").Parse(`<script {{.Marker}}="1">
(function (w) {
  var base = {{printf "%q" .RuntimeBasePath}};
  var rid = new URLSearchParams(w.location.search).get({{printf "%q" .RegistrationParam}}) || "";
  var cache = {}, dirty = {}, lastError = "0", state = "created";

  function post(op, body, sync) {
    body.rid = rid;
    if (sync) {
      var xhr = new XMLHttpRequest();
      xhr.open("POST", base + "/" + op, false);
      xhr.setRequestHeader("Content-Type", "application/json");
      xhr.send(JSON.stringify(body));
      try { return JSON.parse(xhr.responseText).data || {}; } catch (e) { return { errorCode: "101" }; }
    }
    fetch(base + "/" + op, {
      method: "POST", keepalive: true,
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify(body)
    }).then(function (r) { return r.json(); }).then(function (r) {
      if (r.data && r.data.errorCode && r.data.errorCode !== "0") { lastError = r.data.errorCode; }
    }).catch(function () { lastError = "101"; });
    return { errorCode: "0" };
  }

  function takeDirty() {
    var out = dirty; dirty = {};
    return out;
  }

  var bridge = {
    Initialize: function () {
      if (state === "active") { return "true"; }
      var r = post("initialize", {}, true);
      lastError = r.errorCode || "0";
      if (lastError !== "0") { return "false"; }
      cache = r.values || {};
      state = "active";
      return "true";
    },
    GetValue: function (key) {
      if (state !== "active") { lastError = state === "finished" ? "143" : "301"; return ""; }
      lastError = "0";
      return Object.prototype.hasOwnProperty.call(cache, key) ? cache[key] : "";
    },
    SetValue: function (key, value) {
      if (state !== "active") { lastError = state === "finished" ? "143" : "301"; return "false"; }
      cache[key] = String(value);
      dirty[key] = String(value);
      lastError = "0";
      return "true";
    },
    Commit: function () {
      if (state !== "active") { lastError = "301"; return "false"; }
      post("commit", { values: takeDirty() }, false);
      return "true";
    },
    Finish: function () {
      if (state === "finished") { return "true"; }
      if (state !== "active") { lastError = "301"; return "false"; }
      state = "finished";
      post("finish", { values: takeDirty() }, false);
      return "true";
    },
    GetLastError: function () { return lastError; },
    GetErrorString: function (code) { return "error " + code; },
    GetDiagnostic: function (code) { return "error " + (code || lastError); }
  };

  w.CourseBridge = bridge;
  w.API = {
    LMSInitialize: bridge.Initialize, LMSFinish: bridge.Finish,
    LMSGetValue: bridge.GetValue, LMSSetValue: bridge.SetValue, LMSCommit: bridge.Commit,
    LMSGetLastError: bridge.GetLastError, LMSGetErrorString: bridge.GetErrorString,
    LMSGetDiagnostic: bridge.GetDiagnostic
  };
  w.API_1484_11 = {
    Initialize: bridge.Initialize, Terminate: bridge.Finish,
    GetValue: bridge.GetValue, SetValue: bridge.SetValue, Commit: bridge.Commit,
    GetLastError: bridge.GetLastError, GetErrorString: bridge.GetErrorString,
    GetDiagnostic: bridge.GetDiagnostic
  };
  w.addEventListener("pagehide", function () {
    if (state === "active" && Object.keys(dirty).length) { post("commit", { values: takeDirty() }, false); }
  });
})(window);
</script>
`))

// Options configures the rendered shim.
type Options struct {
	RuntimeBasePath   string // prefix of the runtime endpoints, e.g. /runtime
	RegistrationParam string // query parameter carrying the registration id
}

func (o Options) withDefaults() Options {
	if o.RuntimeBasePath == "" {
		o.RuntimeBasePath = "/runtime"
	}
	if o.RegistrationParam == "" {
		o.RegistrationParam = "rid"
	}
	return o
}

// Render returns the script tag for o.
func Render(o Options) ([]byte, error) {
	o = o.withDefaults()
	var buf bytes.Buffer
	err := shimTemplate.Execute(&buf, struct {
		Options
		Marker string
	}{o, Marker})
	return buf.Bytes(), err
}

package server

// Live reload routes
const (
	LiveReloadPath = "/__pagepack/livereload.js"
	EventsPath     = "/__pagepack/events"
	BuildsPath     = "/__pagepack/builds"
)

const liveReloadScript = `(function () {
  if (!window.EventSource) {
    return;
  }
  var source = new EventSource("` + EventsPath + `");
  source.addEventListener("` + EventReload + `", function () {
    window.location.reload();
  });
  source.addEventListener("` + EventError + `", function (e) {
    if (!e.data) {
      return;
    }
    var payload = JSON.parse(e.data);
    console.error("[pagepack] build failed\n" + (payload.errors || []).join("\n"));
  });
})();
`

package httpapi

import (
	"net/http"
)

const usageText = `clash-override: turn proxy subscriptions into a mihomo (Clash.Meta) routing config.

GET  /sub?sub=<url>[&sub=<url>...]
         &loadbalance=true    region groups use load-balance instead of url-test
         &landing=true        add 落地节点 / 前置代理 groups for chained (landing) nodes
         &ipv6=true           enable IPv6 in dns (and runtime with full=true)
         &full=true           emit runtime settings (ports, mode, log-level) for a bare kernel
         &keepalive=true      keep TCP keep-alive enabled (full=true only)
         &target=clash|json   output format, default clash
         &provider=<name>     prefix nodes with [name] and label the usage node
         &info=false          skip usage (Info-) nodes
         &stamp=false         skip the 更新时间 node
         &fileName=<name>     download file name
POST /api/convert            {"nodes": [...], "flags": {...}, "target": "clash"}
GET  /healthz
GET  /metrics
`

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	WriteText(w, http.StatusOK, usageText)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, "ok\n")
}

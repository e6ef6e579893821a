package compiler

import "github.com/John-Robertt/clash-override/internal/catalog"

// Fixed group names. Rules in the catalog refer to groups by these names.
const (
	GroupUpdatedAt  = "更新时间"
	GroupTraffic    = "流量信息"
	GroupSelect     = "节点选择"
	GroupManual     = "手动切换"
	GroupFrontProxy = "前置代理"
	GroupLanding    = "落地节点"
	GroupFallback   = "故障转移"
	GroupStatic     = "静态资源"
	GroupMediaCDN   = "媒体CDN"
	GroupAI         = "AI"
	GroupTelegram   = "Telegram"
	GroupGoogle     = "Google"
	GroupNetflix    = "Netflix"
	GroupSpotify    = "Spotify"
	GroupEHentai    = "E-Hentai"
	GroupSSH        = "SSH(22端口)"
	GroupSteamFix   = "Steam修复"
	GroupDirect     = "直连"
	GroupAdBlock    = "广告拦截"
	GroupSelfHosted = "自建节点"
	GroupGame       = "游戏代理"
	GroupLowCost    = "低倍率节点"
	GroupGlobal     = "GLOBAL"

	PolicyDirect = "DIRECT"
	PolicyReject = "REJECT"
)

// RegionGroupSuffix is appended to a region id to name its group.
const RegionGroupSuffix = "节点"

// RegionGroupName returns the group name for a region id.
func RegionGroupName(id string) string { return id + RegionGroupSuffix }

const iconBase = "https://cdn.jsdelivr.net/gh/Koolson/Qure@master/IconSet/Color/"

var icons = map[string]string{
	GroupUpdatedAt:  iconBase + "Loop.png",
	GroupTraffic:    "https://testingcf.jsdelivr.net/gh/aihdde/Rules@master/icon/Color/Yin_Yang.png",
	GroupSelect:     iconBase + "Proxy.png",
	GroupManual:     "https://cdn.jsdelivr.net/gh/shindgewongxj/WHATSINStash@master/icon/select.png",
	GroupFrontProxy: iconBase + "Area.png",
	GroupLanding:    iconBase + "Airport.png",
	GroupFallback:   iconBase + "Bypass.png",
	GroupStatic:     iconBase + "Cloudflare.png",
	GroupMediaCDN:   iconBase + "Filter.png",
	GroupAI:         "https://cdn.jsdelivr.net/gh/powerfullz/override-rules@master/icons/chatgpt.svg",
	GroupTelegram:   iconBase + "Telegram.png",
	GroupGoogle:     iconBase + "Google_Search.png",
	GroupNetflix:    iconBase + "Netflix.png",
	GroupSpotify:    iconBase + "Spotify.png",
	GroupEHentai:    "https://cdn.jsdelivr.net/gh/powerfullz/override-rules@master/icons/Ehentai.png",
	GroupSSH:        iconBase + "Server.png",
	GroupSteamFix:   iconBase + "Steam.png",
	GroupDirect:     iconBase + "Direct.png",
	GroupAdBlock:    iconBase + "AdBlack.png",
	GroupSelfHosted: iconBase + "Star.png",
	GroupGame:       iconBase + "Game.png",
	GroupLowCost:    iconBase + "Lab.png",
	GroupGlobal:     iconBase + "Global.png",
}

// ReservedNames lists every name a node must not take: built-in policies,
// fixed group names and the region group names of cat. A node sharing one of
// them would make group members ambiguous.
func ReservedNames(cat *catalog.Catalog) []string {
	out := []string{PolicyDirect, PolicyReject, "REJECT-DROP", "PASS", "COMPATIBLE"}
	for name := range icons {
		out = append(out, name)
	}
	if cat != nil {
		for _, r := range cat.Regions {
			out = append(out, RegionGroupName(r.ID))
		}
	}
	return out
}

// Package referrers classifies referrer URLs into acquisition channels.
package referrers

import (
	"net/url"
	"strings"
)

// Referral channels
const (
	ChannelDirect   = "direct"
	ChannelInternal = "internal"
	ChannelOrganic  = "organic"
	ChannelSocial   = "social"
	ChannelOther    = "other"
)

type knownSite struct {
	name    string
	channel string
}

// Domains ending in "." match any public suffix ("google." covers
// google.fr and google.co.uk).
var knownSites = map[string]knownSite{
	// Search engines
	"google.":          {"Google", ChannelOrganic},
	"bing.com":         {"Bing", ChannelOrganic},
	"duckduckgo.com":   {"DuckDuckGo", ChannelOrganic},
	"search.yahoo.com": {"Yahoo", ChannelOrganic},
	"yahoo.co.jp":      {"Yahoo", ChannelOrganic},
	"baidu.com":        {"Baidu", ChannelOrganic},
	"yandex.":          {"Yandex", ChannelOrganic},
	"ecosia.org":       {"Ecosia", ChannelOrganic},
	"kagi.com":         {"Kagi", ChannelOrganic},
	"qwant.com":        {"Qwant", ChannelOrganic},
	"startpage.com":    {"Startpage", ChannelOrganic},
	"search.brave.com": {"Brave Search", ChannelOrganic},
	"naver.com":        {"Naver", ChannelOrganic},
	"seznam.cz":        {"Seznam", ChannelOrganic},

	// Social networks
	"x.com":           {"X/Twitter", ChannelSocial},
	"twitter.com":     {"X/Twitter", ChannelSocial},
	"t.co":            {"X/Twitter", ChannelSocial},
	"facebook.com":    {"Facebook", ChannelSocial},
	"fb.com":          {"Facebook", ChannelSocial},
	"instagram.com":   {"Instagram", ChannelSocial},
	"linkedin.com":    {"LinkedIn", ChannelSocial},
	"lnkd.in":         {"LinkedIn", ChannelSocial},
	"tiktok.com":      {"TikTok", ChannelSocial},
	"pinterest.":      {"Pinterest", ChannelSocial},
	"reddit.com":      {"Reddit", ChannelSocial},
	"threads.net":     {"Threads", ChannelSocial},
	"bsky.app":        {"Bluesky", ChannelSocial},
	"mastodon.social": {"Mastodon", ChannelSocial},
	"youtube.com":     {"YouTube", ChannelSocial},
	"youtu.be":        {"YouTube", ChannelSocial},
	"snapchat.com":    {"Snapchat", ChannelSocial},
	"discord.com":     {"Discord", ChannelSocial},
	"whatsapp.com":    {"WhatsApp", ChannelSocial},
	"t.me":            {"Telegram", ChannelSocial},
	"vk.com":          {"VK", ChannelSocial},
	"tumblr.com":      {"Tumblr", ChannelSocial},

	// Communities and mail, classified as other
	"news.ycombinator.com": {"Hacker News", ChannelOther},
	"lobste.rs":            {"Lobsters", ChannelOther},
	"github.com":           {"GitHub", ChannelOther},
	"stackoverflow.com":    {"Stack Overflow", ChannelOther},
	"medium.com":           {"Medium", ChannelOther},
	"substack.com":         {"Substack", ChannelOther},
	"mail.google.com":      {"Gmail", ChannelOther},
	"outlook.live.com":     {"Outlook", ChannelOther},
	"mail.proton.me":       {"Proton Mail", ChannelOther},
}

// Channel categorizes a referrer for a page of ownOrigin: direct when empty,
// internal when the referrer mentions ownOrigin, otherwise organic, social
// or other depending on the referring host.
func Channel(referrer, ownOrigin string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ChannelDirect
	}
	if ownOrigin != "" && strings.Contains(strings.ToLower(referrer), strings.ToLower(ownOrigin)) {
		return ChannelInternal
	}
	if site, ok := lookup(Hostname(referrer)); ok {
		return site.channel
	}
	return ChannelOther
}

// Hostname extracts the lower-cased host of a referrer URL, without "www.".
// A bare host is accepted as is.
func Hostname(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ""
	}
	if !strings.Contains(referrer, "://") {
		referrer = "https://" + referrer
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// FriendlyName returns a display name for a referrer hostname, falling back
// to the hostname without "www." with its first letter capitalized.
func FriendlyName(hostname string) string {
	hostname = strings.TrimPrefix(strings.ToLower(hostname), "www.")
	if site, ok := lookup(hostname); ok {
		return site.name
	}
	if hostname == "" {
		return ""
	}
	return strings.ToUpper(hostname[:1]) + hostname[1:]
}

func lookup(hostname string) (knownSite, bool) {
	if hostname == "" {
		return knownSite{}, false
	}
	if site, ok := knownSites[hostname]; ok {
		return site, true
	}
	// Longest matching domain wins, so mail.google.com beats google.
	var best string
	for domain := range knownSites {
		if matchesDomain(hostname, domain) && len(domain) > len(best) {
			best = domain
		}
	}
	if best == "" {
		return knownSite{}, false
	}
	return knownSites[best], true
}

func matchesDomain(hostname, domain string) bool {
	if strings.HasSuffix(domain, ".") {
		return strings.HasPrefix(hostname, domain) || strings.Contains(hostname, "."+domain)
	}
	return hostname == domain || strings.HasSuffix(hostname, "."+domain)
}

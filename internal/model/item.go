// Package model はドメインモデルを定義する。
package model

import "time"

// ItemType は外部カタログのアイテム種別を表す。
type ItemType string

const (
	// ItemTypeTrack は楽曲を表す。
	ItemTypeTrack ItemType = "track"
	// ItemTypePlaylist はプレイリストを表す。
	ItemTypePlaylist ItemType = "playlist"
)

// Valid は既知のアイテム種別かを判定する。
func (t ItemType) Valid() bool {
	return t == ItemTypeTrack || t == ItemTypePlaylist
}

// CatalogItem は外部カタログから取得したアイテムの最小表現。
// Artist はプレイリストの場合は空。
type CatalogItem struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Artist string   `json:"artist,omitempty"`
	Type   ItemType `json:"type"`
}

// SearchResult は外部カタログ検索の結果を表す。
type SearchResult struct {
	Tracks    []CatalogItem `json:"tracks"`
	Playlists []CatalogItem `json:"playlists"`
}

// CatalogToken は外部カタログのアクセストークンを表す。
type CatalogToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid はトークンがnow時点で(skewを見込んで)有効かを判定する。
func (t *CatalogToken) Valid(now time.Time, skew time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Add(skew).Before(t.ExpiresAt)
}

package interfaces

// PlayRecord is the last known playback position of one piece of content.
type PlayRecord struct {
	Title         string `json:"title"`
	SourceName    string `json:"source_name"`
	Cover         string `json:"cover"`
	Year          string `json:"year"`
	Index         int    `json:"index"` // episode number, 1-based
	TotalEpisodes int    `json:"total_episodes"`
	PlayTime      int64  `json:"play_time"`  // seconds played
	TotalTime     int64  `json:"total_time"` // total seconds
	SaveTime      int64  `json:"save_time"`  // unix millis
	SearchTitle   string `json:"search_title"`
}

// Favorite marks content as favorited. Its presence is the flag.
type Favorite struct {
	SourceName    string `json:"source_name"`
	TotalEpisodes int    `json:"total_episodes"`
	Title         string `json:"title"`
	Year          string `json:"year"`
	Cover         string `json:"cover"`
	SaveTime      int64  `json:"save_time"`
	SearchTitle   string `json:"search_title"`
	Origin        string `json:"origin,omitempty"` // "vod" or "live"
}

// SkipConfig holds the intro/outro skip points for one piece of content, in seconds.
type SkipConfig struct {
	Enable    bool    `json:"enable"`
	IntroTime float64 `json:"intro_time"`
	OutroTime float64 `json:"outro_time"`
}

// AdminConfig is the global site configuration. At most one exists; last writer wins.
type AdminConfig struct {
	ConfigSubscribtion ConfigSubscription `json:"ConfigSubscribtion"`
	ConfigFile         string             `json:"ConfigFile"`
	SiteConfig         SiteConfig         `json:"SiteConfig"`
	UserConfig         UserConfig         `json:"UserConfig"`
	SourceConfig       []SourceEntry      `json:"SourceConfig"`
	CustomCategories   []CustomCategory   `json:"CustomCategories"`
	LiveConfig         []LiveEntry        `json:"LiveConfig,omitempty"`
}

type ConfigSubscription struct {
	URL        string `json:"URL"`
	AutoUpdate bool   `json:"AutoUpdate"`
	LastCheck  string `json:"LastCheck"`
}

type SiteConfig struct {
	SiteName                string `json:"SiteName"`
	Announcement            string `json:"Announcement"`
	SearchDownstreamMaxPage int    `json:"SearchDownstreamMaxPage"`
	SiteInterfaceCacheTime  int    `json:"SiteInterfaceCacheTime"`
	DoubanProxyType         string `json:"DoubanProxyType"`
	DoubanProxy             string `json:"DoubanProxy"`
	DoubanImageProxyType    string `json:"DoubanImageProxyType"`
	DoubanImageProxy        string `json:"DoubanImageProxy"`
	DisableYellowFilter     bool   `json:"DisableYellowFilter"`
	FluidSearch             bool   `json:"FluidSearch"`
}

type UserConfig struct {
	Users []UserEntry `json:"Users"`
}

// UserEntry describes a user as seen by administrators. Credentials are not part of it.
type UserEntry struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"` // "owner", "admin" or "user"
	Banned      bool     `json:"banned,omitempty"`
	EnabledApis []string `json:"enabledApis,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type SourceEntry struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	API      string `json:"api"`
	Detail   string `json:"detail,omitempty"`
	From     string `json:"from"` // "config" or "custom"
	Disabled bool   `json:"disabled,omitempty"`
}

type CustomCategory struct {
	Name     string `json:"name,omitempty"`
	Type     string `json:"type"` // "movie" or "tv"
	Query    string `json:"query"`
	From     string `json:"from"`
	Disabled bool   `json:"disabled,omitempty"`
}

type LiveEntry struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	UA            string `json:"ua,omitempty"`
	EPG           string `json:"epg,omitempty"`
	From          string `json:"from"`
	ChannelNumber int    `json:"channelNumber,omitempty"`
	Disabled      bool   `json:"disabled,omitempty"`
}

package bilibili

// Endpoints holds the API URLs the client talks to. Overridable so tests
// can point the client at a local server.
type Endpoints struct {
	VideoDetail         string
	DynamicDetail       string
	LegacyDynamicDetail string
	CommentList         string
	ReactionList        string
	Nav                 string
	Relation            string
}

// DefaultEndpoints returns the production API URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		VideoDetail:         "https://api.bilibili.com/x/web-interface/view",
		DynamicDetail:       "https://api.bilibili.com/x/polymer/web-dynamic/v1/detail",
		LegacyDynamicDetail: "https://api.vc.bilibili.com/dynamic_svr/v1/dynamic_svr/get_dynamic_detail",
		CommentList:         "https://api.bilibili.com/x/v2/reply/wbi/main",
		ReactionList:        "https://api.bilibili.com/x/polymer/web-dynamic/v1/detail/reaction",
		Nav:                 "https://api.bilibili.com/x/web-interface/nav",
		Relation:            "https://api.bilibili.com/x/space/wbi/acc/relation",
	}
}

// CommentTypeVideo is the comment area type for videos.
const CommentTypeVideo = 1

// MapLegacyDynamicType converts a legacy dynamic card type to the comment
// area type the reply endpoint expects. Unknown types pass through
// unchanged.
func MapLegacyDynamicType(dynamicType int) int {
	switch dynamicType {
	case 1:
		return 17
	case 2, 4:
		return 11
	case 8:
		return CommentTypeVideo
	case 64:
		return 12
	default:
		return dynamicType
	}
}

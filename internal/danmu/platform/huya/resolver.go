package huya

import (
	"context"
	"regexp"
	"strings"

	"github.com/wsx864321/danmu/internal/danmu"
	"github.com/wsx864321/danmu/pkg/xerr"
)

// BaseURL 虎牙站点
const BaseURL = "https://www.huya.com"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

var (
	ayyuidPattern = regexp.MustCompile(`yyid":"?(\d+)"?`)
	topsidPattern = regexp.MustCompile(`lChannelId":"?(\d+)"?`)
	subidPattern  = regexp.MustCompile(`lSubChannelId":"?(\d+)"?`)

	platformHeaders = map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		"Referer":         BaseURL + "/",
	}
)

// Resolver 抓取房间页，提取 ayyuid/topsid/subid
type Resolver struct {
	client  danmu.HTTPClient
	baseURL string
}

type ResolverOption func(r *Resolver)

// WithBaseURL 替换站点地址
func WithBaseURL(u string) ResolverOption {
	return func(r *Resolver) {
		r.baseURL = strings.TrimRight(u, "/")
	}
}

// NewResolver 创建虎牙解析器
func NewResolver(client danmu.HTTPClient, opts ...ResolverOption) *Resolver {
	r := &Resolver{client: client, baseURL: BaseURL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, ch danmu.ChannelRef) (danmu.RoomContext, error) {
	roomID, err := RoomID(ch.URL)
	if err != nil {
		return danmu.RoomContext{}, err
	}

	body, err := danmu.FetchPage(ctx, r.client, r.baseURL+"/"+roomID, platformHeaders)
	if err != nil {
		return danmu.RoomContext{}, err
	}

	rc := danmu.NewRoomContext(roomID, map[string]int64{
		IDAyyuid: danmu.ExtractInt64(ayyuidPattern, body),
		IDTopsid: danmu.ExtractInt64(topsidPattern, body),
		IDSubid:  danmu.ExtractInt64(subidPattern, body),
	})
	if err := rc.Validate(IDAyyuid, IDTopsid, IDSubid); err != nil {
		return danmu.RoomContext{}, err
	}
	return rc, nil
}

// RoomID 从 https://www.huya.com/<id>?... 中取出房间号，也接受裸房间号
func RoomID(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if i := strings.Index(s, "huya.com/"); i >= 0 {
		s = s[i+len("huya.com/"):]
	} else if strings.Contains(s, "/") {
		return "", xerr.ErrInvalidChannel.Wrapf(nil, rawURL)
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "", xerr.ErrInvalidChannel.Wrapf(nil, rawURL)
	}
	return s, nil
}

package douyu

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/wsx864321/danmu/internal/danmu"
	"github.com/wsx864321/danmu/pkg/xerr"
)

// BaseURL 斗鱼站点
const BaseURL = "https://www.douyu.com"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

var (
	// 房间页里真实房间号的几种写法，靓号页面的路径与房间号不同
	roomIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$ROOM\.room_id\s*=\s*(\d+)`),
		regexp.MustCompile(`"room_id\\?"\s*:\s*(\d+)`),
		regexp.MustCompile(`room_id=(\d+)`),
	}

	platformHeaders = map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		"Referer":         BaseURL + "/",
	}
)

// Resolver 解析斗鱼真实房间号
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

// NewResolver 创建斗鱼解析器
func NewResolver(client danmu.HTTPClient, opts ...ResolverOption) *Resolver {
	r := &Resolver{client: client, baseURL: BaseURL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve 链接带 rid 参数时直接使用，否则抓取房间页提取
func (r *Resolver) Resolve(ctx context.Context, ch danmu.ChannelRef) (danmu.RoomContext, error) {
	path, rid, err := parseChannel(ch.URL)
	if err != nil {
		return danmu.RoomContext{}, err
	}

	if rid == 0 {
		body, err := danmu.FetchPage(ctx, r.client, r.baseURL+"/"+path, platformHeaders)
		if err != nil {
			return danmu.RoomContext{}, err
		}
		for _, re := range roomIDPatterns {
			if rid = danmu.ExtractInt64(re, body); rid != 0 {
				break
			}
		}
	}

	rc := danmu.NewRoomContext(path, map[string]int64{IDRoom: rid})
	if err := rc.Validate(IDRoom); err != nil {
		return danmu.RoomContext{}, err
	}
	return rc, nil
}

// parseChannel 返回路径中的房间标识以及 rid 查询参数（没有时为 0）
func parseChannel(raw string) (string, int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", 0, xerr.ErrInvalidChannel.Wrapf(nil, "empty url")
	}
	if !strings.Contains(s, "/") {
		return s, 0, nil
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || !strings.HasSuffix(u.Hostname(), "douyu.com") {
		return "", 0, xerr.ErrInvalidChannel.Wrapf(err, raw)
	}

	path := strings.Trim(u.Path, "/")
	if v := u.Query().Get("rid"); v != "" {
		rid, err := strconv.ParseInt(v, 10, 64)
		if err != nil || rid <= 0 {
			return "", 0, xerr.ErrInvalidChannel.Wrapf(err, raw)
		}
		if path == "" {
			path = v
		}
		return path, rid, nil
	}
	if path == "" {
		return "", 0, xerr.ErrInvalidChannel.Wrapf(nil, raw)
	}
	return path, 0, nil
}

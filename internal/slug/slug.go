// Package slug 负责发布用 URL 标识的生成与冲突探测。
package slug

import (
	"context"
	"fmt"

	gosimple "github.com/gosimple/slug"
)

// Fallback 在输入归一化后为空时使用。
const Fallback = "portfolio"

// ExistsFunc 查询候选 slug 是否已被占用。由调用方提供，通常是一条
// 排除自身记录的唯一性查询。
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Normalize 将任意展示文本归一化为小写连字符 token。
// 幂等：Normalize(Normalize(s)) == Normalize(s)。
func Normalize(input string) string {
	value := gosimple.Make(input)
	if value == "" {
		return Fallback
	}
	return value
}

// AllocateUnique 归一化 desired 后探测占用情况，冲突时依次追加 -2、-3 …
// 直到找到空位。返回的候选在探测时刻必然未被占用；探测与写入之间的竞态
// 由存储层唯一索引兜底，写入被拒绝时调用方应重试分配。
func AllocateUnique(ctx context.Context, desired string, exists ExistsFunc) (string, error) {
	base := Normalize(desired)
	candidate := base
	for n := 2; ; n++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

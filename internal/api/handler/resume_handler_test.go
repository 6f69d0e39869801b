package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawFileMD5(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", rawFileMD5([]byte("hello")))
	assert.NotEqual(t, rawFileMD5([]byte("a")), rawFileMD5([]byte("b")))
}

// 并发优化锁的key由简历文本和JD共同决定，任一变化都应产生不同的锁
func TestOptimizeLockKey(t *testing.T) {
	text := "张三，后端工程师，负责订单系统重构。"
	jd := "We are hiring a senior backend engineer with Go experience."

	k1 := optimizeLockKey(text, jd)
	k2 := optimizeLockKey(text, jd)
	assert.Equal(t, k1, k2, "相同输入必须得到相同的锁key")
	assert.True(t, strings.HasPrefix(k1, "app:optimization:lock:"))

	assert.NotEqual(t, k1, optimizeLockKey(text, jd+" and Kubernetes"))
	assert.NotEqual(t, k1, optimizeLockKey(text+"。", jd))
}

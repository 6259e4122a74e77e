package monitor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Hara602/liteDefender/internal/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testInterval = 20 * time.Millisecond

// pollBound 新文件应在两个轮询周期内被检测，余量留给调度抖动
const pollBound = 3*testInterval + 100*time.Millisecond

// fakeScanner 记录每个路径被检测的次数
type fakeScanner struct {
	initErr error

	mu    sync.Mutex
	inits int
	calls map[string]int
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{calls: make(map[string]int)}
}

func (s *fakeScanner) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inits++
	return s.initErr
}

func (s *fakeScanner) Inspect(path string) (model.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[path]++
	return model.Verdict{Path: path, Kind: model.Clean}, nil
}

func (s *fakeScanner) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *fakeScanner) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// drop 先写到暂存目录再改名，保证轮询看不到写了一半的文件
func drop(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll("/staging", 0755))
	tmp := "/staging/" + fmt.Sprint(time.Now().UnixNano())
	require.NoError(t, afero.WriteFile(fs, tmp, []byte(content), 0644))
	require.NoError(t, fs.Rename(tmp, path))
}

func TestWatcherStartStopLifecycle(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sc := newFakeScanner()
	w := New(Config{Interval: testInterval}, afero.NewMemMapFs(), sc, zap.New(core))

	assert.False(t, w.IsRunning())
	assert.ErrorIs(t, w.Stop(), ErrNotRunning)
	assert.False(t, w.IsRunning())

	require.NoError(t, w.Start())
	assert.True(t, w.IsRunning())

	assert.ErrorIs(t, w.Start(), ErrAlreadyRunning)
	assert.True(t, w.IsRunning())
	assert.Equal(t, 1, sc.inits, "second start must not re-initialize")

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())

	// 重新启动
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	assert.Equal(t, 2, sc.inits)

	warns := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warns, 2)
	assert.Equal(t, "Monitor is not running", warns[0].Message)
	assert.Equal(t, "Monitor is already running", warns[1].Message)
}

func TestWatcherStartFailsWhenScannerInitFails(t *testing.T) {
	sc := newFakeScanner()
	sc.initErr = errors.New("signatures missing")
	w := New(Config{Interval: testInterval}, afero.NewMemMapFs(), sc, nil)

	err := w.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, sc.initErr)
	assert.False(t, w.IsRunning())
	assert.ErrorIs(t, w.Stop(), ErrNotRunning)
}

func TestWatcherInspectsNewFileOnce(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/watch/sub", 0755))
	sc := newFakeScanner()
	w := New(Config{Interval: testInterval}, mem, sc, nil)

	require.NoError(t, w.Start())
	defer w.Stop()
	w.AddWatchDirectory("/watch")

	drop(t, mem, "/watch/sub/new.txt", "hello")
	require.Eventually(t, func() bool { return sc.count("/watch/sub/new.txt") == 1 },
		pollBound, 5*time.Millisecond)

	// 未修改的文件后续轮询不应再次检测
	time.Sleep(5 * testInterval)
	assert.Equal(t, 1, sc.count("/watch/sub/new.txt"))

	later := time.Now().Add(time.Hour)
	require.NoError(t, mem.Chtimes("/watch/sub/new.txt", later, later))
	require.Eventually(t, func() bool { return sc.count("/watch/sub/new.txt") == 2 },
		pollBound, 5*time.Millisecond)
}

func TestWatcherExistingFilesBaseline(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/watch/a.txt", []byte("a"), 0644))
	require.NoError(t, afero.WriteFile(mem, "/watch/b.txt", []byte("b"), 0644))

	var mu sync.Mutex
	var changes []model.FileChange
	sc := newFakeScanner()
	w := New(Config{
		Interval:    testInterval,
		Directories: []string{"/watch", "/watch"}, // 重复条目不会导致重复检测
		OnChange: func(c model.FileChange) {
			mu.Lock()
			changes = append(changes, c)
			mu.Unlock()
		},
	}, mem, sc, nil)

	require.NoError(t, w.Start())
	require.Eventually(t, func() bool { return w.Tracked() == 2 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(3 * testInterval)
	require.NoError(t, w.Stop())

	assert.Equal(t, 1, sc.count("/watch/a.txt"))
	assert.Equal(t, 1, sc.count("/watch/b.txt"))
	assert.Equal(t, []string{"/watch", "/watch"}, w.WatchDirectories())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 2)
	assert.Equal(t, "/watch/a.txt", changes[0].Path)
	assert.True(t, changes[0].IsNew)
	assert.NoError(t, changes[0].Err)
}

func TestWatcherMissingDirectoryIsSkipped(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/real/x.txt", []byte("x"), 0644))
	core, logs := observer.New(zapcore.InfoLevel)
	sc := newFakeScanner()
	w := New(Config{Interval: testInterval, Directories: []string{"/gone", "/real"}}, mem, sc, zap.New(core))

	require.NoError(t, w.Start())
	require.Eventually(t, func() bool { return sc.count("/real/x.txt") == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	assert.NotZero(t, logs.FilterMessage("Watch directory does not exist").Len())
}

func TestWatchersDoNotShareState(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/shared/f.txt", []byte("f"), 0644))

	sc1, sc2 := newFakeScanner(), newFakeScanner()
	w1 := New(Config{Interval: testInterval, Directories: []string{"/shared"}}, mem, sc1, nil)
	w2 := New(Config{Interval: testInterval, Directories: []string{"/shared"}}, mem, sc2, nil)

	require.NoError(t, w1.Start())
	require.Eventually(t, func() bool { return sc1.count("/shared/f.txt") == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, w1.Stop())

	require.NoError(t, w2.Start())
	require.Eventually(t, func() bool { return sc2.count("/shared/f.txt") == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, w2.Stop())
}

func TestWatcherStopJoinsBackgroundLoop(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/watch", 0755))
	sc := newFakeScanner()
	w := New(Config{Interval: testInterval, Directories: []string{"/watch"}}, mem, sc, nil)

	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())

	drop(t, mem, "/watch/after-stop.txt", "late")
	time.Sleep(5 * testInterval)
	assert.Zero(t, sc.total())
}

func TestAddWatchDirectoryConcurrentWithPolling(t *testing.T) {
	mem := afero.NewMemMapFs()
	sc := newFakeScanner()
	w := New(Config{Interval: time.Millisecond}, mem, sc, nil)
	require.NoError(t, w.Start())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir := fmt.Sprintf("/dir%d", i)
			assert.NoError(t, mem.MkdirAll(dir, 0755))
			w.AddWatchDirectory(dir)
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Stop())
	assert.Len(t, w.WatchDirectories(), 8)
}

func TestRemoveWatchDirectory(t *testing.T) {
	w := New(Config{Directories: []string{"/a", "/b", "/a"}}, afero.NewMemMapFs(), newFakeScanner(), nil)
	w.RemoveWatchDirectory("/a")
	assert.Equal(t, []string{"/b"}, w.WatchDirectories())
}

// blockingScanner 的 Inspect 在 release 关闭前一直阻塞
type blockingScanner struct {
	entered chan string
	release chan struct{}

	mu    sync.Mutex
	calls []string
}

func (s *blockingScanner) Initialize() error { return nil }

func (s *blockingScanner) Inspect(path string) (model.Verdict, error) {
	s.entered <- path
	<-s.release
	s.mu.Lock()
	s.calls = append(s.calls, path)
	s.mu.Unlock()
	return model.Verdict{Path: path, Kind: model.Clean}, nil
}

func TestWatcherLockNotHeldDuringInspect(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/watch/a.txt", []byte("a"), 0644))
	require.NoError(t, afero.WriteFile(mem, "/watch/b.txt", []byte("b"), 0644))
	sc := &blockingScanner{entered: make(chan string, 1), release: make(chan struct{})}
	w := New(Config{Interval: testInterval, Directories: []string{"/watch"}}, mem, sc, nil)

	require.NoError(t, w.Start())
	select {
	case path := <-sc.entered:
		assert.Equal(t, "/watch/a.txt", path)
	case <-time.After(pollBound):
		t.Fatal("first file was not inspected")
	}

	// 检测阻塞期间监控列表仍可读写
	added := make(chan struct{})
	go func() {
		w.AddWatchDirectory("/other")
		close(added)
	}()
	select {
	case <-added:
	case <-time.After(time.Second):
		t.Fatal("AddWatchDirectory blocked by in-flight inspection")
	}
	assert.Equal(t, []string{"/watch", "/other"}, w.WatchDirectories())
	assert.Zero(t, w.Tracked())

	// Stop 等待正在进行的检测结束
	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop() }()
	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight inspection finished")
	case <-time.After(3 * testInterval):
	}

	close(sc.release)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after inspection was released")
	}
	assert.False(t, w.IsRunning())

	// 停止后只有正在进行的那一次检测完成
	sc.mu.Lock()
	defer sc.mu.Unlock()
	assert.Equal(t, []string{"/watch/a.txt"}, sc.calls)
}

// 监控目录本身是符号链接时跟随，目录内的链接不跟随
func TestWatcherFollowsSymlinkedRoot(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.MkdirAll(target, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "f.txt"), []byte("f"), 0644))
	outside := filepath.Join(dir, "outside")
	require.NoError(t, os.MkdirAll(outside, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "g.txt"), []byte("g"), 0644))
	require.NoError(t, os.Symlink(outside, filepath.Join(target, "nested")))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	sc := newFakeScanner()
	w := New(Config{Interval: testInterval, Directories: []string{link}}, afero.NewOsFs(), sc, nil)
	require.NoError(t, w.Start())
	require.Eventually(t, func() bool { return sc.count(filepath.Join(link, "f.txt")) == 1 },
		pollBound, 5*time.Millisecond)
	time.Sleep(3 * testInterval)
	require.NoError(t, w.Stop())

	assert.Equal(t, 1, sc.total())
	assert.Zero(t, sc.count(filepath.Join(link, "nested", "g.txt")))
}

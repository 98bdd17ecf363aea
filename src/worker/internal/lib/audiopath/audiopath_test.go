package audiopath_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/retunelab/voicefixer-worker/src/worker/internal/lib/audiopath"
)

var _ = Describe("MakeName", func() {
	It("inserts the suffix before the extension", func() {
		Expect(audiopath.MakeName("/jobs/abc/song.wav", "-denoised")).To(Equal("song-denoised.wav"))
	})

	It("drops the directory part", func() {
		Expect(audiopath.MakeName("/deeply/nested/dir/track.flac", "-final")).To(Equal("track-final.flac"))
	})

	It("chains across stages", func() {
		name := audiopath.MakeName("song.wav", "-enhanced")
		name = audiopath.MakeName(name, "-final")
		Expect(name).To(Equal("song-enhanced-final.wav"))
	})

	It("handles a file without an extension", func() {
		Expect(audiopath.MakeName("song", "-denoised")).To(Equal("song-denoised"))
	})
})

var _ = Describe("SanitizeStem", func() {
	It("keeps an already safe stem", func() {
		Expect(audiopath.SanitizeStem("my_song_01")).To(Equal("my_song_01"))
	})

	It("lowercases", func() {
		Expect(audiopath.SanitizeStem("MySong")).To(Equal("mysong"))
	})

	It("transliterates accented characters to ASCII", func() {
		Expect(audiopath.SanitizeStem("Café Déjà Vu")).To(Equal("cafe_deja_vu"))
	})

	It("transliterates non-Latin scripts to readable ASCII", func() {
		Expect(audiopath.SanitizeStem("Темная ночь")).To(Equal("temnaia_noch"))
	})

	It("keeps distinct non-Latin stems distinct", func() {
		Expect(audiopath.SanitizeStem("Темная ночь")).NotTo(
			Equal(audiopath.SanitizeStem("Другая песня")))
	})

	It("falls back to a stable hashed stem when nothing transliterates", func() {
		stem := audiopath.SanitizeStem("🎸🥁")
		Expect(stem).To(MatchRegexp(`^track_[0-9a-f]{8}$`))
		Expect(audiopath.SanitizeStem("🎸🥁")).To(Equal(stem))
		Expect(audiopath.SanitizeStem("🎤🎤")).NotTo(Equal(stem))
	})

	It("collapses runs of unsafe characters to one underscore", func() {
		Expect(audiopath.SanitizeStem("a - b -- c")).To(Equal("a_b_c"))
	})

	It("trims leading and trailing underscores", func() {
		Expect(audiopath.SanitizeStem("  (song)  ")).To(Equal("song"))
	})
})

var _ = Describe("SafeName", func() {
	It("keeps directory and extension as is", func() {
		Expect(audiopath.SafeName("/jobs/abc/My Song.wav")).To(Equal("/jobs/abc/my_song.wav"))
	})

	It("is a fixed point for safe names", func() {
		path := "/jobs/abc/my_song.wav"
		Expect(audiopath.SafeName(path)).To(Equal(path))
	})

	It("never reduces a non-Latin name to a bare extension", func() {
		Expect(audiopath.SafeName("/intake/Темная ночь.mp3")).To(
			Equal("/intake/temnaia_noch.mp3"))
	})
})

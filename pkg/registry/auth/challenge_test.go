package auth_test

import (
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/nicholas-fedor/regman/pkg/registry/auth"
)

var _ = ginkgo.Describe("ParseChallenge", func() {
	ginkgo.It("returns false for empty and whitespace-only input", func() {
		_, ok := auth.ParseChallenge("")
		gomega.Expect(ok).To(gomega.BeFalse())

		_, ok = auth.ParseChallenge("   ")
		gomega.Expect(ok).To(gomega.BeFalse())
	})

	ginkgo.It("parses a bearer challenge with quoted values", func() {
		challenge, ok := auth.ParseChallenge(
			`Bearer realm="https://auth.docker.io/token",service="registry.docker.io",scope="repository:library/alpine:pull"`,
		)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(challenge.Scheme).To(gomega.Equal("Bearer"))
		gomega.Expect(challenge.IsBearer()).To(gomega.BeTrue())
		gomega.Expect(challenge.Realm()).To(gomega.Equal("https://auth.docker.io/token"))
		gomega.Expect(challenge.Service()).To(gomega.Equal("registry.docker.io"))
		gomega.Expect(challenge.Scope()).To(gomega.Equal("repository:library/alpine:pull"))
	})

	ginkgo.It("parses a basic challenge", func() {
		challenge, ok := auth.ParseChallenge(`Basic realm="Registry Realm"`)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(challenge.IsBasic()).To(gomega.BeTrue())
		gomega.Expect(challenge.Params).To(gomega.Equal(map[string]string{"realm": "Registry Realm"}))
	})

	ginkgo.It("returns a scheme without parameters", func() {
		challenge, ok := auth.ParseChallenge("Basic")
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(challenge.Scheme).To(gomega.Equal("Basic"))
		gomega.Expect(challenge.Params).To(gomega.BeEmpty())

		_, found := challenge.Get("realm")
		gomega.Expect(found).To(gomega.BeFalse())
		gomega.Expect(challenge.Realm()).To(gomega.BeEmpty())
	})

	ginkgo.It("preserves commas and spaces inside quoted values", func() {
		challenge, _ := auth.ParseChallenge(`Bearer scope="repository:a:pull,push", realm="my realm"`)
		gomega.Expect(challenge.Scope()).To(gomega.Equal("repository:a:pull,push"))
		gomega.Expect(challenge.Realm()).To(gomega.Equal("my realm"))
	})

	ginkgo.It("trims unquoted values and whitespace around keys", func() {
		challenge, _ := auth.ParseChallenge(`Bearer  realm = https://r.example/token , service=r.example`)
		gomega.Expect(challenge.Realm()).To(gomega.Equal("https://r.example/token"))
		gomega.Expect(challenge.Service()).To(gomega.Equal("r.example"))
	})

	ginkgo.It("handles rel=next in both token forms", func() {
		quoted, _ := auth.ParseChallenge(`Link rel="next"`)
		bare, _ := auth.ParseChallenge(`Link rel=next`)
		gomega.Expect(quoted.Params).To(gomega.HaveKeyWithValue("rel", "next"))
		gomega.Expect(bare.Params).To(gomega.HaveKeyWithValue("rel", "next"))
	})

	ginkgo.It("skips malformed pairs and keeps parsing", func() {
		challenge, _ := auth.ParseChallenge(`Bearer invalidkey,realm="https://r.example/token",also-bad`)
		gomega.Expect(challenge.Params).To(gomega.Equal(map[string]string{"realm": "https://r.example/token"}))
	})

	ginkgo.It("keeps the last value for repeated keys", func() {
		challenge, _ := auth.ParseChallenge(`Bearer realm="first",realm="second"`)
		gomega.Expect(challenge.Realm()).To(gomega.Equal("second"))
	})

	ginkgo.It("retains unrecognized parameters", func() {
		challenge, _ := auth.ParseChallenge(`Bearer realm="r",error="insufficient_scope"`)
		gomega.Expect(challenge.Params).To(gomega.HaveKeyWithValue("error", "insufficient_scope"))
	})

	ginkgo.It("unescapes quoted characters", func() {
		challenge, _ := auth.ParseChallenge(`Basic realm="say \"hi\""`)
		gomega.Expect(challenge.Realm()).To(gomega.Equal(`say "hi"`))
	})

	ginkgo.It("tolerates an unterminated quote and a trailing comma", func() {
		challenge, _ := auth.ParseChallenge(`Bearer service="r.example",realm="https://r.example`)
		gomega.Expect(challenge.Service()).To(gomega.Equal("r.example"))
		gomega.Expect(challenge.Realm()).To(gomega.Equal("https://r.example"))

		challenge, _ = auth.ParseChallenge(`Bearer realm="r",`)
		gomega.Expect(challenge.Params).To(gomega.HaveLen(1))
	})

	ginkgo.It("is nil-safe on accessors", func() {
		var challenge *auth.Challenge
		_, ok := challenge.Get("realm")
		gomega.Expect(ok).To(gomega.BeFalse())
		gomega.Expect(challenge.Scope()).To(gomega.BeEmpty())
		gomega.Expect(challenge.IsBearer()).To(gomega.BeFalse())
	})
})

package auth_test

import (
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/nicholas-fedor/regman/pkg/registry/auth"
	"github.com/nicholas-fedor/regman/pkg/types"
)

var _ = ginkgo.Describe("AuthorizationHeader", func() {
	ginkgo.It("returns no header for anonymous access", func() {
		_, ok := auth.AuthorizationHeader(types.Anonymous())
		gomega.Expect(ok).To(gomega.BeFalse())
	})

	ginkgo.It("treats an empty config as anonymous", func() {
		_, ok := auth.AuthorizationHeader(types.AuthConfig{})
		gomega.Expect(ok).To(gomega.BeFalse())
	})

	ginkgo.It("returns no header for client certificates", func() {
		_, ok := auth.AuthorizationHeader(types.TLSCert("/etc/regman/cert.pem", "/etc/regman/key.pem"))
		gomega.Expect(ok).To(gomega.BeFalse())
	})

	ginkgo.It("builds a basic header", func() {
		header, ok := auth.AuthorizationHeader(types.BasicAuth("admin", "secret"))
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(header).To(gomega.Equal("Basic YWRtaW46c2VjcmV0"))
	})

	ginkgo.It("builds a basic header for an empty password", func() {
		header, ok := auth.AuthorizationHeader(types.BasicAuth("admin", ""))
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(header).To(gomega.Equal("Basic YWRtaW46"))
	})

	ginkgo.It("sends bearer tokens verbatim", func() {
		header, ok := auth.AuthorizationHeader(types.BearerToken("abc.def.ghi"))
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(header).To(gomega.Equal("Bearer abc.def.ghi"))
	})
})

var _ = ginkgo.Describe("DecodeBasicAuth", func() {
	ginkgo.DescribeTable("round-trips credentials",
		func(username, password string) {
			header, _ := auth.AuthorizationHeader(types.BasicAuth(username, password))
			gotUser, gotPass, ok := auth.DecodeBasicAuth(header)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(gotUser).To(gomega.Equal(username))
			gomega.Expect(gotPass).To(gomega.Equal(password))
		},
		ginkgo.Entry("simple", "admin", "secret"),
		ginkgo.Entry("password with colons", "admin", "a:b:c"),
		ginkgo.Entry("empty password", "admin", ""),
		ginkgo.Entry("unicode", "ñandú", "pässwörd"),
	)

	ginkgo.It("rejects other schemes and bad encodings", func() {
		_, _, ok := auth.DecodeBasicAuth("Bearer abc")
		gomega.Expect(ok).To(gomega.BeFalse())

		_, _, ok = auth.DecodeBasicAuth("Basic !!!")
		gomega.Expect(ok).To(gomega.BeFalse())

		_, _, ok = auth.DecodeBasicAuth("Basic YWRtaW4=") // "admin", no colon
		gomega.Expect(ok).To(gomega.BeFalse())
	})
})

var _ = ginkgo.Describe("MaskAuthorization", func() {
	ginkgo.It("hides credentials", func() {
		gomega.Expect(auth.MaskAuthorization("Basic YWRtaW46c2VjcmV0")).To(gomega.Equal("Basic ***"))
		gomega.Expect(auth.MaskAuthorization("Bearer abc")).To(gomega.Equal("Bearer ***"))
		gomega.Expect(auth.MaskAuthorization("Token abc")).To(gomega.Equal("***"))
		gomega.Expect(auth.MaskAuthorization("")).To(gomega.BeEmpty())
	})
})

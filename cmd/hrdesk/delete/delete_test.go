package deletecmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	deletecmder "github.com/papercomputeco/hrdesk/cmd/hrdesk/delete"
)

var _ = Describe("NewDeleteCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := deletecmder.NewDeleteCmd()
		Expect(cmd.Use).To(Equal("delete <document-id>..."))
	})

	It("requires at least one document", func() {
		cmd := deletecmder.NewDeleteCmd()
		Expect(cmd.Args(cmd, []string{})).To(HaveOccurred())
		Expect(cmd.Args(cmd, []string{"doc-1"})).To(Succeed())
	})

	It("has a --path flag", func() {
		cmd := deletecmder.NewDeleteCmd()
		flag := cmd.Flags().Lookup("path")
		Expect(flag).NotTo(BeNil())
		Expect(flag.DefValue).To(Equal("false"))
	})
})

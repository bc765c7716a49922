package couriercmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	couriercmder "github.com/papercomputeco/courier/cmd/courier"
)

var _ = Describe("NewCourierCmd", func() {
	It("registers every subcommand", func() {
		cmd := couriercmder.NewCourierCmd()

		var names []string
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("serve", "ingest", "config", "init", "version"))
	})

	It("has global debug and config-dir flags", func() {
		cmd := couriercmder.NewCourierCmd()

		debug := cmd.PersistentFlags().Lookup("debug")
		Expect(debug).NotTo(BeNil())
		Expect(debug.Shorthand).To(Equal("d"))
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("runs the version subcommand", func() {
		cmd := couriercmder.NewCourierCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"version"})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Version:"))
	})

	It("fails on unknown subcommands", func() {
		cmd := couriercmder.NewCourierCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"teleport"})

		Expect(cmd.Execute()).To(HaveOccurred())
	})
})

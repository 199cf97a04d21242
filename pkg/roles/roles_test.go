package roles_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
	"github.com/papercomputeco/hrdesk/pkg/roles"
)

var _ = Describe("Role", func() {
	DescribeTable("parses display names and slugs",
		func(in string, want roles.Role) {
			got, err := roles.Parse(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("display name", "Team Lead", roles.TeamLead),
		Entry("slug", "hr_executive", roles.HRExecutive),
		Entry("mixed case", "hr manager", roles.HRManager),
		Entry("hyphenated", "team-lead", roles.TeamLead),
		Entry("padded", "  Employee ", roles.Employee),
	)

	It("rejects unknown roles", func() {
		_, err := roles.Parse("ceo")
		Expect(err).To(MatchError(ContainSubstring("unknown role")))
	})

	It("orders every role by rank", func() {
		all := roles.All()
		Expect(all).To(HaveLen(4))
		for i := 1; i < len(all); i++ {
			Expect(all[i].Rank()).To(BeNumerically(">", all[i-1].Rank()))
		}
	})

	It("exposes the account caps", func() {
		Expect(roles.HRManager.MaxInstances()).To(Equal(roles.MaxHRManagers))
		Expect(roles.TeamLead.MaxInstances()).To(Equal(roles.MaxTeamLeads))
		Expect(roles.Employee.MaxInstances()).To(BeZero())
	})

	It("round-trips through text encoding", func() {
		b, err := roles.HRExecutive.MarshalText()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(Equal("hr_executive"))

		var r roles.Role
		Expect(r.UnmarshalText(b)).To(Succeed())
		Expect(r).To(Equal(roles.HRExecutive))
	})

	It("grants nothing to invalid roles", func() {
		bogus := roles.Role(42)
		Expect(bogus.Valid()).To(BeFalse())
		Expect(bogus.Capabilities()).To(Equal(roles.Capabilities{}))
		Expect(roles.VisibleTo(bogus, roles.Everyone())).To(BeFalse())
	})

	It("joins and splits slug lists", func() {
		s := roles.JoinSlugs([]roles.Role{roles.Employee, roles.HRManager})
		Expect(s).To(Equal("employee,hr_manager"))

		back, err := roles.SplitSlugs(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(back).To(Equal([]roles.Role{roles.Employee, roles.HRManager}))
	})
})

var _ = Describe("Authorization", func() {
	It("lets only HR Managers upload", func() {
		for _, r := range roles.All() {
			Expect(roles.CanUpload(r)).To(Equal(r == roles.HRManager))
		}
	})

	It("lets HR Executives and HR Managers delete documents", func() {
		Expect(roles.CanDeleteDocument(roles.Employee)).To(BeFalse())
		Expect(roles.CanDeleteDocument(roles.TeamLead)).To(BeFalse())
		Expect(roles.CanDeleteDocument(roles.HRExecutive)).To(BeTrue())
		Expect(roles.CanDeleteDocument(roles.HRManager)).To(BeTrue())
	})

	var (
		manager   = roles.Principal{UserID: "m", Role: roles.HRManager}
		executive = roles.Principal{UserID: "x", Role: roles.HRExecutive}
		lead      = roles.Principal{UserID: "tl", Role: roles.TeamLead}
		ownEmp    = roles.Principal{UserID: "e1", Role: roles.Employee, TeamLead: "tl"}
		otherEmp  = roles.Principal{UserID: "e2", Role: roles.Employee, TeamLead: "tl-other"}
		noLeadEmp = roles.Principal{UserID: "e3", Role: roles.Employee}
	)

	DescribeTable("CanDelete",
		func(actor, target roles.Principal, want bool) {
			Expect(roles.CanDelete(actor, target)).To(Equal(want))
		},
		Entry("manager on executive", manager, executive, true),
		Entry("executive on manager", executive, manager, true),
		Entry("executive on employee", executive, ownEmp, true),
		Entry("lead on own employee", lead, ownEmp, true),
		Entry("lead on other team's employee", lead, otherEmp, false),
		Entry("lead on employee without a lead", lead, noLeadEmp, false),
		Entry("lead on executive", lead, executive, false),
		Entry("employee on employee", ownEmp, otherEmp, false),
		Entry("manager on self", manager, manager, false),
		Entry("executive on self", executive, executive, false),
		Entry("lead on self", lead, lead, false),
		Entry("anonymous actor", roles.Principal{Role: roles.HRManager}, ownEmp, false),
	)
})

var _ = Describe("Policy", func() {
	It("defaults to every role", func() {
		p := roles.Everyone()
		Expect(p.IsDefault()).To(BeTrue())
		Expect(p.Resolve()).To(Equal(roles.All()))
		for _, r := range roles.All() {
			Expect(roles.VisibleTo(r, p)).To(BeTrue())
		}
	})

	It("restricts to an allow-list", func() {
		p := roles.Only(roles.HRManager, roles.HRManager)
		Expect(p.Resolve()).To(Equal([]roles.Role{roles.HRManager}))
		Expect(roles.VisibleTo(roles.HRManager, p)).To(BeTrue())
		Expect(roles.VisibleTo(roles.HRExecutive, p)).To(BeFalse())
		Expect(roles.VisibleTo(roles.Employee, p)).To(BeFalse())
	})

	It("builds rank thresholds", func() {
		p := roles.AtLeast(roles.TeamLead)
		Expect(p.Resolve()).To(Equal([]roles.Role{roles.TeamLead, roles.HRExecutive, roles.HRManager}))
		Expect(roles.VisibleTo(roles.Employee, p)).To(BeFalse())
	})

	It("resolves in rank order regardless of input order", func() {
		p := roles.Only(roles.HRManager, roles.Employee)
		Expect(p.Resolve()).To(Equal([]roles.Role{roles.Employee, roles.HRManager}))
		Expect(p.Validate()).To(Succeed())
	})

	It("never widens an allow-list of unknown roles to everyone", func() {
		p := roles.Only(roles.Role(9))
		Expect(p.IsDefault()).To(BeFalse())
		Expect(p.Resolve()).To(BeEmpty())
		Expect(errors.Is(p.Validate(), errdefs.ErrInvalidInput)).To(BeTrue())
		for _, r := range roles.All() {
			Expect(roles.VisibleTo(r, p)).To(BeFalse())
		}
	})

	It("drops unknown roles from a mixed allow-list but still rejects it", func() {
		p := roles.Only(roles.HRManager, roles.Role(-1))
		Expect(p.Resolve()).To(Equal([]roles.Role{roles.HRManager}))
		Expect(p.Validate()).To(MatchError(ContainSubstring("unknown role -1")))
	})
})

var _ = Describe("ParsePolicy", func() {
	DescribeTable("parses the command-line forms",
		func(in string, want []roles.Role) {
			p, err := roles.ParsePolicy(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Resolve()).To(Equal(want))
		},
		Entry("empty is everyone", "", roles.All()),
		Entry("everyone", "Everyone", roles.All()),
		Entry("minimum rank", "min:hr_executive", []roles.Role{roles.HRExecutive, roles.HRManager}),
		Entry("explicit list", "hr_manager, Team Lead", []roles.Role{roles.TeamLead, roles.HRManager}),
	)

	It("rejects unknown roles", func() {
		_, err := roles.ParsePolicy("min:ceo")
		Expect(err).To(MatchError(ContainSubstring("unknown role")))
	})

	It("round trips through String", func() {
		p, err := roles.ParsePolicy(roles.AtLeast(roles.TeamLead).String())
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Resolve()).To(Equal([]roles.Role{roles.TeamLead, roles.HRExecutive, roles.HRManager}))
		Expect(roles.Everyone().String()).To(Equal("everyone"))
	})
})

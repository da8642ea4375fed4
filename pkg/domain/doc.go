/*
Package domain contains the core models of the Arbor booking engine.

It defines the booking form (a tree of service nodes plus base questions),
the organisation and employee records that availability is computed from,
and the time intervals used to intersect schedules. This package is kept pure
and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - FlowNode: a node of the service tree (start root, group or bookable service).
  - BookingFlowData: the serialisable configuration of one booking form.
  - FormFieldConfig: a question asked during booking (tagged by field type).
  - Form: a stored BookingFlowData owned by an organisation.
  - Organization / Employee: the tenant and the people that can be booked.
  - Interval / Slot: time ranges used by the availability calculator.
*/
package domain

package sqlinline

const QInsertUsageEvent = `--sql bd94d9d2-d9ff-4ee9-bf26-e9e5b4ff606b
insert into usage_events (id, user_id, resource_id, event, created_at)
values (gen_random_uuid(), $1::uuid, nullif($2::text, '')::uuid, $3::text, now());
`

const QCountUsageEventsToday = `--sql 3523a9f0-f6db-4bbb-a897-6524ba7f400f
select count(*)
from usage_events
where user_id = $1::uuid
  and event = $2::text
  and created_at::date = current_date;
`
